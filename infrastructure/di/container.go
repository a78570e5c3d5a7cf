package di

import (
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/application/services"
	"reportexport/infrastructure/config"
	"reportexport/pkg/observability"
)

// Container holds all application dependencies
type Container struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Collector
	OperationRepo ports.OperationRepository
	ExportClient  ports.ExportClient
	Registry      *orchestrator.Registry
	Bridge        *bridge.Bridge
	ExportService *services.ExportService
}
