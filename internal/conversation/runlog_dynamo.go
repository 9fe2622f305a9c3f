package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/consigdesk/consig-ai-platform/pkg/logging"
)

const runRecordTTL = 30 * 24 * time.Hour

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// dynamoRunItem is the DynamoDB projection of a RunRecord, keyed by
// lead with the start timestamp as sort key.
type dynamoRunItem struct {
	LeadID     string `dynamodbav:"leadId"`
	StartedAt  string `dynamodbav:"startedAt"`
	RunID      string `dynamodbav:"runId"`
	Model      string `dynamodbav:"model"`
	Outcome    string `dynamodbav:"outcome"`
	ToolName   string `dynamodbav:"toolName,omitempty"`
	Error      string `dynamodbav:"error,omitempty"`
	InputTok   int32  `dynamodbav:"inputTokens"`
	OutputTok  int32  `dynamodbav:"outputTokens"`
	TotalTok   int32  `dynamodbav:"totalTokens"`
	FinishedAt string `dynamodbav:"finishedAt"`
	ExpiresAt  int64  `dynamodbav:"expiresAt"`
}

// DynamoRunLog persists agent run records to DynamoDB.
type DynamoRunLog struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

var _ RunRecorder = (*DynamoRunLog)(nil)

// NewDynamoRunLog builds a run log backed by the provided DynamoDB client.
func NewDynamoRunLog(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRunLog {
	if client == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("conversation: run log table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRunLog{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Record implements RunRecorder.
func (l *DynamoRunLog) Record(ctx context.Context, rec RunRecord) error {
	if rec.LeadID == "" {
		return errors.New("conversation: run record requires a lead id")
	}

	item := dynamoRunItem{
		LeadID:     rec.LeadID,
		StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339Nano),
		RunID:      uuid.NewString(),
		Model:      rec.Model,
		Outcome:    rec.Outcome,
		ToolName:   rec.ToolName,
		Error:      rec.Error,
		InputTok:   rec.Usage.InputTokens,
		OutputTok:  rec.Usage.OutputTokens,
		TotalTok:   rec.Usage.TotalTokens,
		FinishedAt: rec.FinishedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:  rec.FinishedAt.Add(runRecordTTL).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("conversation: marshal run record: %w", err)
	}

	if _, err := l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      av,
	}); err != nil {
		return fmt.Errorf("conversation: put run record: %w", err)
	}
	return nil
}

// RunsForLead returns the persisted run records for a lead, newest
// first, up to limit.
func (l *DynamoRunLog) RunsForLead(ctx context.Context, leadID string, limit int) ([]RunRecord, error) {
	if leadID == "" {
		return nil, errors.New("conversation: lead id required")
	}
	if limit <= 0 {
		limit = 20
	}

	out, err := l.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(l.tableName),
		KeyConditionExpression: aws.String("leadId = :lead"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":lead": &types.AttributeValueMemberS{Value: leadID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: query run records: %w", err)
	}

	records := make([]RunRecord, 0, len(out.Items))
	for _, raw := range out.Items {
		var item dynamoRunItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			l.logger.Warn("skipping malformed run record", "error", err, "lead_id", leadID)
			continue
		}
		records = append(records, item.toRecord())
	}
	return records, nil
}

func (i dynamoRunItem) toRecord() RunRecord {
	started, _ := time.Parse(time.RFC3339Nano, i.StartedAt)
	finished, _ := time.Parse(time.RFC3339Nano, i.FinishedAt)
	return RunRecord{
		LeadID:   i.LeadID,
		Model:    i.Model,
		Outcome:  i.Outcome,
		ToolName: i.ToolName,
		Error:    i.Error,
		Usage: TokenUsage{
			InputTokens:  i.InputTok,
			OutputTokens: i.OutputTok,
			TotalTokens:  i.TotalTok,
		},
		StartedAt:  started,
		FinishedAt: finished,
	}
}
