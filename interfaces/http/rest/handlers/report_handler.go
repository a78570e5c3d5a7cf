package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"reportexport/application/ports"
	"reportexport/application/services"
	"reportexport/pkg/common"
	apperrors "reportexport/pkg/errors"
	"reportexport/pkg/utils"
)

// ReportHandler handles report export start requests
type ReportHandler struct {
	exports    *services.ExportService
	retryAfter int
	logger     *zap.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(exports *services.ExportService, retryAfter int, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		exports:    exports,
		retryAfter: retryAfter,
		logger:     logger,
	}
}

// StartReportRequest represents the request body for starting an export.
// The body is optional; an empty request starts the default report.
type StartReportRequest struct {
	ReportType string            `json:"reportType,omitempty" validate:"omitempty,max=100"`
	Parameters map[string]string `json:"parameters,omitempty" validate:"omitempty,max=50"`
}

// StartReportResponse carries the poll location in the body as well as the
// Location header, for clients that do not surface headers.
type StartReportResponse struct {
	StatusQueryURI string `json:"statusQueryUri"`
	RetryAfter     int    `json:"retryAfter"`
}

// StartReport handles POST /report
func (h *ReportHandler) StartReport(w http.ResponseWriter, r *http.Request) {
	var req StartReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		appErr := apperrors.NewValidationError("Invalid request body: " + err.Error()).WithCode("INVALID_BODY")
		common.RespondError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		appErr := apperrors.NewValidationError(err.Error()).WithCode("VALIDATION_ERROR")
		common.RespondError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
		return
	}

	tok, err := h.exports.Start(r.Context(), ports.ExportParams{
		ReportType: req.ReportType,
		Parameters: req.Parameters,
	})
	if err != nil {
		h.logger.Error("failed to start report export", zap.Error(err))
		common.RespondError(w, apperrors.GetHTTPStatus(err), "START_FAILED", "Failed to start report export")
		return
	}

	location := "/async/" + tok.Encode()
	w.Header().Set("Location", location)
	w.Header().Set("Retry-After", strconv.Itoa(h.retryAfter))
	common.RespondJSON(w, http.StatusAccepted, StartReportResponse{
		StatusQueryURI: location,
		RetryAfter:     h.retryAfter,
	})
}
