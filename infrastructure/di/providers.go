package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"reportexport/application/bridge"
	"reportexport/application/orchestrator"
	"reportexport/application/ports"
	"reportexport/application/services"
	"reportexport/infrastructure/config"
	"reportexport/infrastructure/exportjob"
	dynamorepo "reportexport/infrastructure/persistence/dynamodb"
	"reportexport/infrastructure/persistence/memory"
	"reportexport/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("reportexport")
}

// ProvideOperationRepository selects the operation store backend
func ProvideOperationRepository(ctx context.Context, cfg *config.Config) (ports.OperationRepository, error) {
	switch cfg.StorageBackend {
	case "dynamodb":
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.AWSRegion),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return dynamorepo.NewOperationRepository(provideDynamoDBClient(awsCfg), cfg.DynamoDBTable), nil
	case "memory":
		return memory.NewOperationRepository(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func provideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideExportClient creates the export backend client
func ProvideExportClient(cfg *config.Config, logger *zap.Logger) ports.ExportClient {
	return exportjob.NewClient(exportjob.Config{
		BaseURL: cfg.ExportBaseURL,
		APIKey:  cfg.ExportAPIKey,
	}, logger)
}

// ProvideRegistry creates the orchestrator registry
func ProvideRegistry(
	repo ports.OperationRepository,
	metrics *observability.Collector,
	logger *zap.Logger,
	cfg *config.Config,
) *orchestrator.Registry {
	return orchestrator.NewRegistry(repo, metrics, logger, cfg.OperationTimeout)
}

// ProvideBridge creates the status bridge
func ProvideBridge(
	registry *orchestrator.Registry,
	client ports.ExportClient,
	metrics *observability.Collector,
	logger *zap.Logger,
) *bridge.Bridge {
	return bridge.NewBridge(registry, client, metrics, logger)
}

// ProvideExportService creates the export service
func ProvideExportService(
	client ports.ExportClient,
	registry *orchestrator.Registry,
	logger *zap.Logger,
) *services.ExportService {
	return services.NewExportService(client, registry, logger)
}
