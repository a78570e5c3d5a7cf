package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/pkg/common"
	"reportexport/pkg/schema"
)

// EventHandler accepts file-created notifications over HTTP for deployments
// without a message broker. Semantics match the NATS listener: a payload the
// bridge cannot act on is logged and dropped, never surfaced to the sender.
type EventHandler struct {
	bridge *bridge.Bridge
	logger *zap.Logger
}

// NewEventHandler creates a new notification webhook handler
func NewEventHandler(statusBridge *bridge.Bridge, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bridge: statusBridge,
		logger: logger,
	}
}

// ReportFileCreated handles POST /events/report-file
func (h *EventHandler) ReportFileCreated(w http.ResponseWriter, r *http.Request) {
	var event schema.FileCreatedEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid event payload: "+err.Error())
		return
	}

	instanceID, err := bridge.ParseSubject(event.Subject)
	if err != nil {
		h.logger.Warn("dropping notification with unparseable subject",
			zap.String("subject", event.Subject),
			zap.Error(err),
		)
		common.RespondJSON(w, http.StatusAccepted, nil)
		return
	}

	h.bridge.CheckOnNotification(r.Context(), instanceID)
	common.RespondJSON(w, http.StatusAccepted, nil)
}
