package gateway

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"taskbridge/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewForwarder_Validation(t *testing.T) {
	_, err := NewForwarder(ForwarderConfig{}, nil, nil)
	assert.ErrorIs(t, err, config.ErrBackendURLRequired)

	_, err = NewForwarder(ForwarderConfig{URL: "ftp://example.com/exec"}, nil, nil)
	assert.Error(t, err)

	_, err = NewForwarder(ForwarderConfig{URL: "://bad"}, nil, nil)
	assert.Error(t, err)

	f, err := NewForwarder(ForwarderConfig{URL: "https://script.google.com/macros/s/abc/exec"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, f.timeout)
	f.Close()
}

func TestForwarder_ForwardRaw(t *testing.T) {
	backend := newMockBackend(t, http.StatusTeapot, "short and stout")
	f, err := NewForwarder(ForwarderConfig{URL: backend.URL}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	env := NewEnvelope(ActionGetUserTeam)
	env.Set("username", "alice")

	raw, err := f.Forward(context.Background(), http.MethodGet, env)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, raw.Status)
	assert.Equal(t, "short and stout", string(raw.Body))
}

func TestForwarder_UnsupportedMethod(t *testing.T) {
	f, err := NewForwarder(ForwarderConfig{URL: "http://127.0.0.1:1"}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	_, err = f.Forward(context.Background(), http.MethodDelete, NewEnvelope(ActionLeave))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported method")

	resp := f.Call(context.Background(), http.MethodDelete, NewEnvelope(ActionLeave))
	assert.Equal(t, http.StatusBadGateway, resp.Status)
}

func TestForwarder_BodyLimit(t *testing.T) {
	backend := newMockBackend(t, http.StatusOK, strings.Repeat("a", 32))

	f, err := NewForwarder(ForwarderConfig{URL: backend.URL, MaxBodyBytes: 32}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f.Close)

	raw, err := f.Forward(context.Background(), http.MethodGet, NewEnvelope(ActionGetTasks))
	require.NoError(t, err)
	assert.Len(t, raw.Body, 32)

	f2, err := NewForwarder(ForwarderConfig{URL: backend.URL, MaxBodyBytes: 31}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(f2.Close)

	_, err = f2.Forward(context.Background(), http.MethodGet, NewEnvelope(ActionGetTasks))
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestForwarder_RequestIDPropagatesToLogs(t *testing.T) {
	backend := newMockBackend(t, http.StatusOK, `{}`)
	env := newTestEnv(t, backend.URL)

	ctx := WithRequestID(context.Background(), "abc-1")
	resp := env.fwd.Call(ctx, http.MethodPost, NewEnvelope(ActionLeave))
	assert.Equal(t, http.StatusOK, resp.Status)

	entries := env.logs.FilterField(zap.String("request_id", "abc-1")).All()
	assert.GreaterOrEqual(t, len(entries), 2)
}
