package metrics_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chatradio/radiobot/internal/metrics"
)

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	metrics.NewRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestMetricsExposure(t *testing.T) {
	metrics.IncRequest("accepted")
	metrics.IncFetch("ledger_hit")
	metrics.IncCommandError("", "execute")

	rec := httptest.NewRecorder()
	metrics.NewRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `radiobot_song_requests_total{outcome="accepted"}`)
	assert.Contains(t, body, `radiobot_fetches_total{outcome="ledger_hit"}`)
	assert.Contains(t, body, `radiobot_command_errors_total{handler="unknown",phase="execute"}`)
}

func TestServerShutsDownOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))

	srv, err := metrics.Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = client.Get("http://" + srv.Addr() + "/healthz")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.HasPrefix(string(body), "ok"))

	cancel()
	assert.NoError(t, <-done)
}
