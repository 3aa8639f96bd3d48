// internal/action/httpemitter.go
package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/d2auto/agent/internal/model"
)

// HTTPEmitter forwards actions to the external input-synthesis sidecar
// as JSON POSTs. The sidecar owns the OS-level injection; a short
// timeout keeps a wedged sidecar from stalling sequences.
type HTTPEmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPEmitter creates an emitter posting to endpoint.
func NewHTTPEmitter(endpoint string, timeout time.Duration) *HTTPEmitter {
	return &HTTPEmitter{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Emit posts one action. Any non-2xx answer is an error; callers treat
// emission failures as non-fatal.
func (e *HTTPEmitter) Emit(ctx context.Context, a model.Action) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode action: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build action request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver action: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("synthesizer rejected action: %s", resp.Status)
	}
	return nil
}
