package observability

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eleven-am/playbook/internal/xjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, checks map[string]HealthCheck) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := NewServer(DefaultConfig(), reg, nil)
	for name, check := range checks {
		s.WithHealthCheck(name, check)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, reg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Health(t *testing.T) {
	ts, _ := newTestServer(t, map[string]HealthCheck{
		"compute": func(context.Context) error { return nil },
	})

	code, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusOK, code)

	var resp HealthResponse
	require.NoError(t, xjson.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"compute": "ok"}, resp.Components)

	code, body = get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)

	code, _ = get(t, ts.URL+"/live")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_Unhealthy(t *testing.T) {
	ts, _ := newTestServer(t, map[string]HealthCheck{
		"compute": func(context.Context) error { return errors.New("not serving") },
	})

	code, body := get(t, ts.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "not serving")

	code, _ = get(t, ts.URL+"/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServer_Metrics(t *testing.T) {
	ts, reg := newTestServer(t, nil)
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "playbook_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Add(3)

	code, body := get(t, ts.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "playbook_test_total 3")

	code, _ = get(t, ts.URL+"/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := NewServer(DefaultConfig(), prometheus.NewRegistry(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + lis.Addr().String() + "/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
