package combo

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/d2auto/agent/internal/combo"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
