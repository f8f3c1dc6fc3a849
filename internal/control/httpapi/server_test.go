package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swordlegend/dava.engine/internal/audio/device"
	"github.com/swordlegend/dava.engine/internal/errors"
	"github.com/swordlegend/dava.engine/internal/host"
	"github.com/swordlegend/dava.engine/internal/lifecycle"
	"github.com/swordlegend/dava.engine/internal/logger"
)

type fixture struct {
	server   *Server
	activity *host.Activity
	adapter  *lifecycle.Adapter
	dev      *device.Null
}

func newFixture(t *testing.T, visible bool, opts ...Option) *fixture {
	t.Helper()

	log := logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)
	activity := host.NewActivity(host.Config{Name: "test", InitiallyVisible: visible, Logger: log})
	dev := device.NewNull("null-test")

	adapter, err := lifecycle.New(activity,
		func() (lifecycle.Device, error) { return dev, nil },
		lifecycle.WithLogger(log),
		lifecycle.WithID("adapter-1"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, adapter.Wait(ctx))

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = adapter.Close(ctx)
		_ = activity.Close(ctx)
	})

	opts = append([]Option{WithLogger(log)}, opts...)
	return &fixture{
		server:   New("127.0.0.1:0", activity, adapter, opts...),
		activity: activity,
		adapter:  adapter,
		dev:      dev,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusReportsHostAndAdapter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true, WithVersion("1.4.0"))
	rec := f.do(t, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "1.4.0", resp.Version)
	assert.True(t, resp.Host.Alive)
	assert.True(t, resp.Host.Visible)
	assert.Equal(t, 1, resp.Host.Listeners)
	require.NotNil(t, resp.Adapter)
	assert.Equal(t, "adapter-1", resp.Adapter.ID)
	assert.Equal(t, "started", resp.Adapter.State)
	assert.True(t, resp.Adapter.DeviceOpen)
	assert.True(t, resp.Adapter.Registered)
	assert.Empty(t, resp.Adapter.LastError)
}

func TestStatusWithoutAdapter(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	srv := New("127.0.0.1:0", f.activity, nil)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Adapter)
}

func TestSetVisibilityDrivesDevice(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	require.False(t, f.dev.Running())

	rec := f.do(t, http.MethodPut, "/api/v1/visibility", `{"visible":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"visible":true}`, rec.Body.String())
	assert.True(t, f.dev.Running())
	assert.Equal(t, lifecycle.Started, f.adapter.State())

	rec = f.do(t, http.MethodPut, "/api/v1/visibility", `{"visible":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"visible":false}`, rec.Body.String())
	assert.False(t, f.dev.Running())
	assert.Equal(t, lifecycle.Stopped, f.adapter.State())

	rec = f.do(t, http.MethodGet, "/api/v1/visibility", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"visible":false}`, rec.Body.String())
}

func TestSetVisibilityRejectsBadBodies(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing field", `{}`},
		{"malformed json", `{"visible":`},
		{"wrong type", `{"visible":"yes"}`},
	}

	f := newFixture(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPut, "/api/v1/visibility", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.False(t, f.dev.Running())
}

func TestClosedHostIsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.adapter.Close(ctx))
	require.NoError(t, f.activity.Close(ctx))

	rec := f.do(t, http.MethodPut, "/api/v1/visibility", `{"visible":true}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsRouteIsOptional(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)
	rec := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("lifecycle_device_running 0\n"))
	})
	g := newFixture(t, false, WithMetricsHandler(metrics))
	rec = g.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lifecycle_device_running")
}

func TestStartAndShutdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	errCh := make(chan error, 1)
	go func() { errCh <- f.server.Start() }()

	require.Eventually(t, func() bool { return f.server.Addr() != nil }, time.Second, 5*time.Millisecond)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + f.server.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	require.NoError(t, f.server.Shutdown(ctx))
	require.NoError(t, <-errCh)
}

func TestStartOnBusyAddressIsNetworkError(t *testing.T) {
	t.Parallel()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = busy.Close() }()

	f := newFixture(t, false)
	srv := New(busy.Addr().String(), f.activity, f.adapter,
		WithLogger(logger.NewSlogLogger(&bytes.Buffer{}, logger.LogLevelError, time.UTC)))

	err = srv.Start()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
	assert.Nil(t, srv.Addr())
}
