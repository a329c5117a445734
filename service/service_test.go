package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthzServer_Handle(t *testing.T) {
	h := NewHealthzServer(log.NewLogger(log.DiscardHandler()))
	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHealthzServer_Start(t *testing.T) {
	ctx := context.Background()
	h := NewHealthzServer(log.NewLogger(log.DiscardHandler()))
	assert.Nil(t, h.Addr())
	require.NoError(t, h.Start(ctx, "127.0.0.1:0"))
	defer func() {
		require.NoError(t, h.Shutdown(ctx))
	}()

	code, body := get(t, "http://"+h.Addr().String()+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestService_StartShutdown(t *testing.T) {
	ctx := context.Background()
	s := New(Config{
		Metrics: opmetrics.CLIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			ListenPort: 0,
		},
	}, log.NewLogger(log.DiscardHandler()))
	assert.Nil(t, s.Healthz)
	require.NotNil(t, s.Metrics)
	require.NoError(t, s.Start(ctx))
	defer func() {
		require.NoError(t, s.Shutdown(ctx))
	}()

	code, body := get(t, "http://"+s.Metrics.Addr().String()+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "go_goroutines")
}

func TestService_StartError(t *testing.T) {
	s := New(Config{HealthzAddr: "127.0.0.1", HealthzPort: -1}, log.NewLogger(log.DiscardHandler()))
	require.NotNil(t, s.Healthz)
	assert.Error(t, s.Start(context.Background()))
}

func TestService_Disabled(t *testing.T) {
	s := New(Config{}, log.NewLogger(log.DiscardHandler()))
	assert.Nil(t, s.Healthz)
	assert.Nil(t, s.Metrics)
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}

func TestService_DefaultHealthzHost(t *testing.T) {
	s := New(Config{HealthzPort: HealthzPort}, log.NewLogger(log.DiscardHandler()))
	assert.Equal(t, HealthzHost, s.cfg.HealthzAddr)
	assert.NotNil(t, s.Healthz)
}
