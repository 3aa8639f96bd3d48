package action

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d2auto/agent/internal/model"
)

func TestHTTPEmitter_PostsAction(t *testing.T) {
	var got model.Action
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	e := NewHTTPEmitter(ts.URL, time.Second)
	require.NoError(t, e.Emit(context.Background(), model.KeyPress("q", "cycler")))
	assert.Equal(t, model.ActionKeyPress, got.Kind)
	assert.Equal(t, "q", got.Key)
}

func TestHTTPEmitter_RejectionIsError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	e := NewHTTPEmitter(ts.URL, time.Second)
	err := e.Emit(context.Background(), model.KeyPress("q", "cycler"))
	assert.ErrorContains(t, err, "synthesizer rejected action")
}

func TestHTTPEmitter_UnreachableIsError(t *testing.T) {
	e := NewHTTPEmitter("http://127.0.0.1:1/act", 50*time.Millisecond)
	err := e.Emit(context.Background(), model.KeyPress("q", "cycler"))
	assert.ErrorContains(t, err, "failed to deliver action")
}
