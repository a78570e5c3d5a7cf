package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"reportexport/application/ports"
	"reportexport/domain/operation"
)

// OperationRepository implements ports.OperationRepository using DynamoDB
type OperationRepository struct {
	client    *dynamodb.Client
	tableName string
}

// operationItem represents how operation records are stored in DynamoDB
type operationItem struct {
	PK             string `dynamodbav:"PK"` // OPERATION#<instance_id>
	SK             string `dynamodbav:"SK"` // METADATA
	InstanceID     string `dynamodbav:"InstanceID"`
	JobID          string `dynamodbav:"JobID"`
	RuntimeStatus  string `dynamodbav:"RuntimeStatus"`
	OutputLocation string `dynamodbav:"OutputLocation,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	DeadlineAt     string `dynamodbav:"DeadlineAt"`
}

// NewOperationRepository creates a new DynamoDB operation repository
func NewOperationRepository(client *dynamodb.Client, tableName string) *OperationRepository {
	return &OperationRepository{
		client:    client,
		tableName: tableName,
	}
}

// Save upserts the record for its instance ID
func (r *OperationRepository) Save(ctx context.Context, record *operation.Record) error {
	item, err := attributevalue.MarshalMap(recordToItem(record))
	if err != nil {
		return fmt.Errorf("failed to marshal operation record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to save operation record: %w", err)
	}
	return nil
}

// Get loads the record for an instance ID
func (r *OperationRepository) Get(ctx context.Context, instanceID string) (*operation.Record, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": "OPERATION#" + instanceID,
		"SK": "METADATA",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get operation record: %w", err)
	}
	if out.Item == nil {
		return nil, ports.ErrOperationNotFound
	}

	var item operationItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal operation record: %w", err)
	}
	return itemToRecord(&item)
}

// ListActive scans for every record not yet in a terminal state
func (r *OperationRepository) ListActive(ctx context.Context) ([]*operation.Record, error) {
	filter := expression.Name("RuntimeStatus").In(
		expression.Value(string(operation.StatusPending)),
		expression.Value(string(operation.StatusRunning)),
	)
	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build filter expression: %w", err)
	}

	var records []*operation.Record
	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation records: %w", err)
		}

		for _, raw := range page.Items {
			var item operationItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal operation record: %w", err)
			}
			record, err := itemToRecord(&item)
			if err != nil {
				return nil, err
			}
			records = append(records, record)
		}
	}
	return records, nil
}

func recordToItem(record *operation.Record) *operationItem {
	return &operationItem{
		PK:             "OPERATION#" + record.InstanceID,
		SK:             "METADATA",
		InstanceID:     record.InstanceID,
		JobID:          record.JobID,
		RuntimeStatus:  string(record.Status),
		OutputLocation: record.OutputLocation,
		CreatedAt:      record.CreatedAt.Format(time.RFC3339Nano),
		DeadlineAt:     record.DeadlineAt.Format(time.RFC3339Nano),
	}
}

func itemToRecord(item *operationItem) (*operation.Record, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CreatedAt on record %s: %w", item.InstanceID, err)
	}
	deadlineAt, err := time.Parse(time.RFC3339Nano, item.DeadlineAt)
	if err != nil {
		return nil, fmt.Errorf("invalid DeadlineAt on record %s: %w", item.InstanceID, err)
	}

	return &operation.Record{
		InstanceID:     item.InstanceID,
		JobID:          item.JobID,
		Status:         operation.ParseStatus(item.RuntimeStatus),
		OutputLocation: item.OutputLocation,
		CreatedAt:      createdAt,
		DeadlineAt:     deadlineAt,
	}, nil
}
