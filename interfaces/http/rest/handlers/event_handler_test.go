package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/domain/operation"
	"reportexport/infrastructure/persistence/memory"
	"reportexport/pkg/observability"
)

func newEventFixture(t *testing.T, client *stubExportClient) (*EventHandler, *orchestrator.Registry) {
	t.Helper()
	repo := memory.NewOperationRepository()
	metrics := observability.NewCollector("test")
	registry := orchestrator.NewRegistry(repo, metrics, zap.NewNop(), time.Hour)
	t.Cleanup(registry.Close)
	statusBridge := bridge.NewBridge(registry, client, metrics, zap.NewNop())
	return NewEventHandler(statusBridge, zap.NewNop()), registry
}

func TestReportFileCreatedCompletesOperation(t *testing.T) {
	client := &stubExportClient{status: ports.JobSucceeded, output: "https://x/report1.csv"}
	handler, registry := newEventFixture(t, client)

	_, err := registry.Start(context.Background(), "inst-1", "job-1")
	require.NoError(t, err)

	body := `{"id":"evt-1","eventType":"Microsoft.Storage.BlobCreated","subject":"/containers/report-files/blobs/inst-1_1.csv"}`
	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ReportFileCreated(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	inst, ok := registry.Get("inst-1")
	require.True(t, ok)
	assert.Equal(t, operation.StatusSucceeded, inst.Status())
	assert.Equal(t, "https://x/report1.csv", inst.Record().OutputLocation)
}

func TestReportFileCreatedUnknownInstanceAcked(t *testing.T) {
	client := &stubExportClient{status: ports.JobSucceeded}
	handler, _ := newEventFixture(t, client)

	body := `{"subject":"/containers/report-files/blobs/unknown-instance_1.csv"}`
	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ReportFileCreated(rec, req)

	// dropped, not an error to the sender
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, client.polls())
}

func TestReportFileCreatedBadSubjectAcked(t *testing.T) {
	client := &stubExportClient{}
	handler, _ := newEventFixture(t, client)

	body := `{"subject":"///"}`
	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ReportFileCreated(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, client.polls())
}

func TestReportFileCreatedRejectsInvalidJSON(t *testing.T) {
	client := &stubExportClient{}
	handler, _ := newEventFixture(t, client)

	req := httptest.NewRequest(http.MethodPost, "/events/report-file", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	handler.ReportFileCreated(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
