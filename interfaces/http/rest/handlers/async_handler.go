package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/domain/operation"
	"reportexport/domain/token"
	"reportexport/pkg/common"
	apperrors "reportexport/pkg/errors"
	"reportexport/pkg/observability"
)

// AsyncHandler handles status polling for in-flight export operations. Every
// terminal outcome maps to exactly one status class: redirect for success
// with output, 404 for success without, 500 for failure, 503 for timeout,
// cancellation or an unknown instance. Terminal operations the registry no
// longer tracks (it only re-arms running ones after a restart) are served
// from their persisted records.
type AsyncHandler struct {
	registry   *orchestrator.Registry
	bridge     *bridge.Bridge
	repo       ports.OperationRepository
	metrics    *observability.Collector
	retryAfter int
	logger     *zap.Logger
}

// NewAsyncHandler creates a new async status handler
func NewAsyncHandler(
	registry *orchestrator.Registry,
	statusBridge *bridge.Bridge,
	repo ports.OperationRepository,
	metrics *observability.Collector,
	retryAfter int,
	logger *zap.Logger,
) *AsyncHandler {
	return &AsyncHandler{
		registry:   registry,
		bridge:     statusBridge,
		repo:       repo,
		metrics:    metrics,
		retryAfter: retryAfter,
		logger:     logger,
	}
}

// PollResponse is the body of a still-running poll response
type PollResponse struct {
	StatusQueryURI string `json:"statusQueryUri"`
	RetryAfter     int    `json:"retryAfter"`
}

// GetStatus handles GET /async/{token}
func (h *AsyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	tok, err := token.Decode(chi.URLParam(r, "token"))
	if err != nil {
		// client error; the orchestrator is never consulted for a bad token
		h.metrics.PollResponses.WithLabelValues("malformed_token").Inc()
		common.RespondError(w, http.StatusBadRequest, "MALFORMED_TOKEN", "Continuation token could not be decoded")
		return
	}

	var record operation.Record
	if inst, ok := h.registry.Get(tok.InstanceID); ok {
		status := inst.Status()
		if !status.Terminal() && h.bridge.ShouldCheck(tok.Attempt) {
			// throttled check against the export backend; the resulting
			// signal, if any, lands before the bridge returns
			h.bridge.CheckOnPoll(r.Context(), inst)
		}
		record = inst.Record()
	} else {
		// Operations that reached a terminal state before a restart are no
		// longer tracked in memory; their persisted records still answer.
		stored, err := h.repo.Get(r.Context(), tok.InstanceID)
		if err != nil {
			h.logger.Warn("poll for unknown instance", zap.String("instanceID", tok.InstanceID))
			h.metrics.PollResponses.WithLabelValues("unknown_instance").Inc()
			common.RespondError(w, http.StatusServiceUnavailable, "UNKNOWN_INSTANCE", "No operation found for this token")
			return
		}
		record = *stored
		if !record.Status.Terminal() {
			// a persisted non-terminal record without a live instance means
			// this process does not own the operation
			h.logger.Warn("poll for untracked active operation", zap.String("instanceID", tok.InstanceID))
			h.metrics.PollResponses.WithLabelValues("unavailable").Inc()
			common.RespondError(w, http.StatusServiceUnavailable, "STATUS_UNKNOWN", "Operation status unknown")
			return
		}
	}

	switch record.Status {
	case operation.StatusPending, operation.StatusRunning:
		next := tok.Next()
		location := "/async/" + next.Encode()
		w.Header().Set("Location", location)
		w.Header().Set("Retry-After", strconv.Itoa(h.retryAfter))
		h.metrics.PollResponses.WithLabelValues("accepted").Inc()
		common.RespondJSON(w, http.StatusAccepted, PollResponse{
			StatusQueryURI: location,
			RetryAfter:     h.retryAfter,
		})

	case operation.StatusSucceeded:
		if record.OutputLocation != "" {
			h.metrics.PollResponses.WithLabelValues("redirect").Inc()
			http.Redirect(w, r, record.OutputLocation, http.StatusFound)
			return
		}
		// Succeeded with no artifact renders like a missing resource, but is
		// logged distinctly from a timeout so operators can tell them apart.
		h.logger.Warn("operation succeeded with empty output location",
			zap.String("instanceID", tok.InstanceID),
		)
		h.metrics.PollResponses.WithLabelValues("no_artifact").Inc()
		appErr := apperrors.NewNotFoundError("Export output").WithCode("NO_ARTIFACT")
		common.RespondError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)

	case operation.StatusFailed:
		h.logger.Error("operation failed", zap.String("instanceID", tok.InstanceID))
		h.metrics.PollResponses.WithLabelValues("failed").Inc()
		common.RespondError(w, http.StatusInternalServerError, "EXPORT_FAILED", "Report export failed")

	case operation.StatusTimedOut, operation.StatusCancelled:
		h.logger.Warn("operation did not complete",
			zap.String("instanceID", tok.InstanceID),
			zap.String("status", string(record.Status)),
		)
		h.metrics.PollResponses.WithLabelValues("unavailable").Inc()
		appErr := apperrors.NewTimeoutError("Report export did not complete in time").WithCode("EXPORT_INCOMPLETE")
		common.RespondError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)

	default:
		h.logger.Warn("operation status unknown", zap.String("instanceID", tok.InstanceID))
		h.metrics.PollResponses.WithLabelValues("unavailable").Inc()
		common.RespondError(w, http.StatusServiceUnavailable, "STATUS_UNKNOWN", "Operation status unknown")
	}
}
