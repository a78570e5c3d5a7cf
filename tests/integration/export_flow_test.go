package integration

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/application/services"
	"reportexport/infrastructure/config"
	"reportexport/infrastructure/persistence/memory"
	"reportexport/interfaces/http/rest"
	"reportexport/pkg/observability"
)

// scriptedExportClient lets a test move the fake backend through its states.
type scriptedExportClient struct {
	mu         sync.Mutex
	status     ports.JobStatus
	output     string
	pollCalls  int
	fetchCalls int
}

func (c *scriptedExportClient) Submit(context.Context, ports.ExportParams) (string, error) {
	return "job-ext-1", nil
}

func (c *scriptedExportClient) Poll(context.Context, string) (ports.JobStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pollCalls++
	return c.status, nil
}

func (c *scriptedExportClient) FetchOutput(context.Context, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchCalls++
	return c.output, nil
}

func (c *scriptedExportClient) set(status ports.JobStatus, output string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
	c.output = output
}

func (c *scriptedExportClient) polls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pollCalls
}

type stack struct {
	client  *scriptedExportClient
	handler http.Handler
}

func newStack(t *testing.T, window time.Duration) *stack {
	t.Helper()

	client := &scriptedExportClient{status: ports.JobRunning}
	repo := memory.NewOperationRepository()
	metrics := observability.NewCollector("test")
	logger := zap.NewNop()

	registry := orchestrator.NewRegistry(repo, metrics, logger, window)
	t.Cleanup(registry.Close)
	statusBridge := bridge.NewBridge(registry, client, metrics, logger)
	exports := services.NewExportService(client, registry, logger)

	cfg := &config.Config{
		Environment:       "development",
		StorageBackend:    "memory",
		OperationTimeout:  window,
		RetryAfterSeconds: 10,
	}

	router := rest.NewRouter(exports, registry, statusBridge, repo, metrics, cfg, logger)
	return &stack{client: client, handler: router.Setup()}
}

func (s *stack) start(t *testing.T) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/report", nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	location := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(location, "/async/"))
	return location
}

func (s *stack) poll(t *testing.T, location string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, location, nil)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestSuccessAfterSixthAttemptRedirects(t *testing.T) {
	s := newStack(t, time.Hour)
	location := s.start(t)

	// attempts 0 through 5: still running
	for i := 0; i < 6; i++ {
		rec := s.poll(t, location)
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, "10", rec.Header().Get("Retry-After"))
		location = rec.Header().Get("Location")
	}

	// backend finishes before the poll at attempt 6
	s.client.set(ports.JobSucceeded, "https://x/report1.csv")

	rec := s.poll(t, location)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://x/report1.csv", rec.Header().Get("Location"))

	// throttled: attempts 0 and 6 queried the backend
	assert.Equal(t, 2, s.client.polls())
}

func TestDeadlineExpiryRenders503(t *testing.T) {
	s := newStack(t, 20*time.Millisecond)
	location := s.start(t)

	require.Eventually(t, func() bool {
		return s.poll(t, location).Code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	// stays 503 on later polls
	assert.Equal(t, http.StatusServiceUnavailable, s.poll(t, location).Code)
}

func TestBackendFailureRenders500AndSticks(t *testing.T) {
	s := newStack(t, time.Hour)
	s.client.set(ports.JobFailed, "")
	location := s.start(t)

	rec := s.poll(t, location)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	pollsAfterFirst := s.client.polls()

	// a later poll with the same stale token reports failure again without
	// querying the backend
	rec = s.poll(t, location)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, pollsAfterFirst, s.client.polls())
}

func TestMalformedTokenRenders400WithoutLookup(t *testing.T) {
	s := newStack(t, time.Hour)
	s.start(t)

	bad := base64.RawURLEncoding.EncodeToString([]byte("inst-1|job-1|abc"))
	rec := s.poll(t, "/async/"+bad)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, s.client.polls())
}

func TestNotificationForUntrackedInstanceIsAcked(t *testing.T) {
	s := newStack(t, time.Hour)

	body := `{"subject":"/containers/report-files/blobs/ghost-instance_1.csv"}`
	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, s.client.polls())
}

func TestEmptyOutputRenders404NotRedirect(t *testing.T) {
	s := newStack(t, time.Hour)
	s.client.set(ports.JobSucceeded, "")
	location := s.start(t)

	rec := s.poll(t, location)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
}

func TestNotificationShortCircuitsPolling(t *testing.T) {
	s := newStack(t, time.Hour)
	location := s.start(t)

	// first poll at attempt 0: backend still running
	rec := s.poll(t, location)
	require.Equal(t, http.StatusAccepted, rec.Code)
	location = rec.Header().Get("Location")

	// backend finishes and notifies out of band; no further polls needed to
	// reach the throttle point
	s.client.set(ports.JobSucceeded, "https://x/report2.csv")

	instanceLocation := location
	notify := `{"subject":"/containers/report-files/blobs/` + instanceID(t, instanceLocation) + `_1.csv"}`
	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader(notify))
	nrec := httptest.NewRecorder()
	s.handler.ServeHTTP(nrec, req)
	require.Equal(t, http.StatusAccepted, nrec.Code)

	// the next poll, at attempt 1 (not a throttle point), already redirects
	rec = s.poll(t, instanceLocation)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://x/report2.csv", rec.Header().Get("Location"))
}

func instanceID(t *testing.T, location string) string {
	t.Helper()
	encoded := strings.TrimPrefix(location, "/async/")
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	require.NoError(t, err)
	return strings.Split(string(raw), "|")[0]
}
