// Package dynamodb stores change logs in a single DynamoDB table.
//
// Layout:
//
//	PK=WS#<workspace>  SK=V#<version>   one item per change record
//	PK=WS#<workspace>  SK=HEAD          latest version, guards version allocation
//	PK=CHANGE#<id>     SK=CHANGE        id lookup
package dynamodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/aggregates"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const maxAppendAttempts = 5

// DynamoDBAPI is the subset of the DynamoDB client the repository uses
type DynamoDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// ChangeLogRepository implements ports.ChangeLogRepository on DynamoDB
type ChangeLogRepository struct {
	client    DynamoDBAPI
	tableName string
	logger    *zap.Logger
}

var _ ports.ChangeLogRepository = (*ChangeLogRepository)(nil)

// NewChangeLogRepository creates a new DynamoDB change log repository
func NewChangeLogRepository(client DynamoDBAPI, tableName string, logger *zap.Logger) *ChangeLogRepository {
	return &ChangeLogRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Append stores the draft as the next pending version. The head item is
// written in the same transaction under a version condition, so concurrent
// appends to one workspace retry instead of sharing a version.
func (r *ChangeLogRepository) Append(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	id := uuid.New().String()

	for attempt := 1; attempt <= maxAppendAttempts; attempt++ {
		head, err := r.LatestVersion(ctx, draft.WorkspaceID)
		if err != nil {
			return nil, err
		}

		rec := entities.NewChangeRecord(id, head+1, draft, utils.Now())
		input, err := r.appendInput(rec, head)
		if err != nil {
			return nil, pkgerrors.NewInternalError("failed to build append").WithCause(err)
		}

		_, err = r.client.TransactWriteItems(ctx, input)
		if err == nil {
			r.logger.Debug("Change appended",
				zap.String("workspace_id", rec.WorkspaceID),
				zap.String("change_id", rec.ID),
				zap.Int64("version", rec.Version),
				zap.Int("attempt", attempt),
			)
			return rec, nil
		}
		if !isConflict(err) {
			return nil, classify("append", err)
		}

		r.logger.Debug("Version race on append, retrying",
			zap.String("workspace_id", draft.WorkspaceID),
			zap.Int64("head", head),
			zap.Int("attempt", attempt),
		)
	}

	return nil, pkgerrors.NewConflictError(
		fmt.Sprintf("could not allocate a version for workspace %s", draft.WorkspaceID),
	)
}

func (r *ChangeLogRepository) appendInput(rec *entities.ChangeRecord, head int64) (*dynamodb.TransactWriteItemsInput, error) {
	item, err := toItem(rec)
	if err != nil {
		return nil, err
	}
	recordAV, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal change item: %w", err)
	}
	headAV, err := attributevalue.MarshalMap(HeadItem{
		PK:         workspacePK(rec.WorkspaceID),
		SK:         headSK,
		EntityType: entityHead,
		Version:    rec.Version,
		UpdatedAt:  item.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal head item: %w", err)
	}
	lookupAV, err := attributevalue.MarshalMap(LookupItem{
		PK:          lookupPK(rec.ID),
		SK:          lookupSK,
		EntityType:  entityLookup,
		WorkspaceID: rec.WorkspaceID,
		Version:     rec.Version,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal lookup item: %w", err)
	}

	headCond := expression.Name("PK").AttributeNotExists()
	if head > 0 {
		headCond = expression.Name("Version").Equal(expression.Value(head))
	}
	headExpr, err := expression.NewBuilder().WithCondition(headCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build head condition: %w", err)
	}
	newExpr, err := expression.NewBuilder().WithCondition(expression.Name("PK").AttributeNotExists()).Build()
	if err != nil {
		return nil, fmt.Errorf("build insert condition: %w", err)
	}

	return &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:                 aws.String(r.tableName),
				Item:                      headAV,
				ConditionExpression:       headExpr.Condition(),
				ExpressionAttributeNames:  headExpr.Names(),
				ExpressionAttributeValues: headExpr.Values(),
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     recordAV,
				ConditionExpression:      newExpr.Condition(),
				ExpressionAttributeNames: newExpr.Names(),
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     lookupAV,
				ConditionExpression:      newExpr.Condition(),
				ExpressionAttributeNames: newExpr.Names(),
			}},
		},
	}, nil
}

// Get retrieves a record by id through the lookup item
func (r *ChangeLogRepository) Get(ctx context.Context, id string) (*entities.ChangeRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            lookupKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get", err)
	}
	if out.Item == nil {
		return nil, pkgerrors.NewChangeNotFound(id)
	}

	var lookup LookupItem
	if err := attributevalue.UnmarshalMap(out.Item, &lookup); err != nil {
		return nil, pkgerrors.NewDatabaseError("get", err)
	}

	rec, err := r.getRecord(ctx, lookup.WorkspaceID, lookup.Version)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, pkgerrors.NewChangeNotFound(id)
	}
	return rec, nil
}

func (r *ChangeLogRepository) getRecord(ctx context.Context, workspaceID string, version int64) (*entities.ChangeRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            recordKey(workspaceID, version),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return unmarshalRecord(out.Item)
}

// Update writes the mutable fields of rec if the stored status still equals expected
func (r *ChangeLogRepository) Update(ctx context.Context, rec *entities.ChangeRecord, expected valueobjects.ChangeStatus) error {
	update := expression.
		Set(expression.Name("Status"), expression.Value(string(rec.Status))).
		Set(expression.Name("Reason"), expression.Value(rec.Reason)).
		Set(expression.Name("UndoneBy"), expression.Value(rec.UndoneBy)).
		Set(expression.Name("AppliedSeq"), expression.Value(rec.AppliedSeq)).
		Set(expression.Name("AppliedAt"), expression.Value(formatTime(rec.AppliedAt))).
		Set(expression.Name("ResolvedAt"), expression.Value(formatTime(rec.ResolvedAt)))
	condition := expression.Name("PK").AttributeExists().
		And(expression.Name("Status").Equal(expression.Value(string(expected))))

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build update").WithCause(err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       recordKey(rec.WorkspaceID, rec.Version),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err == nil {
		return nil
	}
	if !isConflict(err) {
		return classify("update", err)
	}

	current, getErr := r.getRecord(ctx, rec.WorkspaceID, rec.Version)
	if getErr != nil {
		return getErr
	}
	if current == nil || current.ID != rec.ID {
		return pkgerrors.NewChangeNotFound(rec.ID)
	}
	return pkgerrors.NewAlreadyResolved(rec.ID, string(current.Status))
}

// ListPending returns pending records oldest first
func (r *ChangeLogRepository) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(workspacePK(workspaceID))).
		And(expression.Key("SK").BeginsWith("V#"))
	statusFilter := expression.Name("Status").Equal(expression.Value(string(valueobjects.ChangePending)))

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(statusFilter).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query").WithCause(err)
	}

	recs, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
		ConsistentRead:            aws.Bool(true),
	}, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*entities.ChangeRecord, 0, len(recs))
	for _, rec := range recs {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListHistory returns up to limit records newest first, below cursor
func (r *ChangeLogRepository) ListHistory(ctx context.Context, workspaceID string, limit int, cursor int64) (*ports.HistoryPage, error) {
	page := &ports.HistoryPage{Entries: []*entities.ChangeRecord{}}
	if cursor == 1 || limit <= 0 {
		return page, nil
	}

	keyCond := expression.Key("PK").Equal(expression.Value(workspacePK(workspaceID)))
	if cursor > 1 {
		keyCond = keyCond.And(expression.Key("SK").Between(
			expression.Value(versionSK(1)), expression.Value(versionSK(cursor-1)),
		))
	} else {
		keyCond = keyCond.And(expression.Key("SK").BeginsWith("V#"))
	}

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query").WithCause(err)
	}

	recs, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
		ConsistentRead:            aws.Bool(true),
		Limit:                     aws.Int32(int32(limit)),
	}, limit)
	if err != nil {
		return nil, err
	}

	page.Entries = recs
	if n := len(recs); n > 0 && recs[n-1].Version > 1 {
		page.NextCursor = recs[n-1].Version
	}
	return page, nil
}

// ListApplied returns applied and undone records in application order
func (r *ChangeLogRepository) ListApplied(ctx context.Context, workspaceID string) ([]*entities.ChangeRecord, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(workspacePK(workspaceID))).
		And(expression.Key("SK").BeginsWith("V#"))
	statusFilter := expression.Name("Status").In(
		expression.Value(string(valueobjects.ChangeApplied)),
		expression.Value(string(valueobjects.ChangeUndone)),
	)

	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).WithFilter(statusFilter).Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build query").WithCause(err)
	}

	recs, err := r.queryAll(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
		ConsistentRead:            aws.Bool(true),
	}, 0)
	if err != nil {
		return nil, err
	}

	aggregates.SortByApplication(recs)
	return recs, nil
}

// LatestVersion reads the workspace head item. A missing head means an empty log.
func (r *ChangeLogRepository) LatestVersion(ctx context.Context, workspaceID string) (int64, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            headKey(workspaceID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, classify("latest version", err)
	}
	if out.Item == nil {
		return 0, nil
	}

	var head HeadItem
	if err := attributevalue.UnmarshalMap(out.Item, &head); err != nil {
		return 0, pkgerrors.NewDatabaseError("latest version", err)
	}
	return head.Version, nil
}

// queryAll follows LastEvaluatedKey until the result is exhausted or max
// records are collected (0 means no cap).
func (r *ChangeLogRepository) queryAll(ctx context.Context, input *dynamodb.QueryInput, max int) ([]*entities.ChangeRecord, error) {
	recs := []*entities.ChangeRecord{}
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, classify("query", err)
		}

		for _, item := range out.Items {
			rec, err := unmarshalRecord(item)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
			if max > 0 && len(recs) == max {
				return recs, nil
			}
		}

		if len(out.LastEvaluatedKey) == 0 {
			return recs, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func unmarshalRecord(av map[string]types.AttributeValue) (*entities.ChangeRecord, error) {
	var item ChangeItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal change", err)
	}
	rec, err := item.toRecord()
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("unmarshal change", err)
	}
	return rec, nil
}

// isConflict reports a failed condition check, alone or inside a cancelled transaction
func isConflict(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ConditionalCheckFailedException", "TransactionCanceledException", "TransactionConflictException":
			return true
		}
	}
	return false
}

// classify maps SDK errors onto the application error taxonomy
func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.NewTimeoutError("dynamodb " + op).WithCause(err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ProvisionedThroughputExceededException", "ThrottlingException", "RequestLimitExceeded":
			return pkgerrors.NewUnavailableError("dynamodb").WithCause(err)
		}
	}
	return pkgerrors.NewDatabaseError(op, err)
}
