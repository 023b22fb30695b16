package dynamodb

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	entityChange = "CHANGE"
	entityHead   = "HEAD"
	entityLookup = "LOOKUP"

	headSK   = "HEAD"
	lookupSK = "CHANGE"
)

// ChangeItem is how a change record is laid out in the table
type ChangeItem struct {
	PK          string `dynamodbav:"PK"` // WS#<workspace_id>
	SK          string `dynamodbav:"SK"` // V#<zero padded version>
	EntityType  string `dynamodbav:"EntityType"`
	ID          string `dynamodbav:"ID"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	Version     int64  `dynamodbav:"Version"`
	Operation   string `dynamodbav:"Operation"`
	TargetType  string `dynamodbav:"TargetType"`
	TargetID    string `dynamodbav:"TargetID"`
	Actor       string `dynamodbav:"Actor"`
	BeforeState string `dynamodbav:"BeforeState,omitempty"` // JSON
	AfterState  string `dynamodbav:"AfterState,omitempty"`  // JSON
	Status      string `dynamodbav:"Status"`
	Reason      string `dynamodbav:"Reason,omitempty"`
	InverseOf   string `dynamodbav:"InverseOf,omitempty"`
	UndoneBy    string `dynamodbav:"UndoneBy,omitempty"`
	AppliedSeq  int64  `dynamodbav:"AppliedSeq"`
	CreatedAt   string `dynamodbav:"CreatedAt"`
	AppliedAt   string `dynamodbav:"AppliedAt,omitempty"`
	ResolvedAt  string `dynamodbav:"ResolvedAt,omitempty"`
}

// HeadItem tracks the latest version of a workspace log
type HeadItem struct {
	PK         string `dynamodbav:"PK"` // WS#<workspace_id>
	SK         string `dynamodbav:"SK"` // HEAD
	EntityType string `dynamodbav:"EntityType"`
	Version    int64  `dynamodbav:"Version"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// LookupItem maps a change id to its position in the log
type LookupItem struct {
	PK          string `dynamodbav:"PK"` // CHANGE#<id>
	SK          string `dynamodbav:"SK"` // CHANGE
	EntityType  string `dynamodbav:"EntityType"`
	WorkspaceID string `dynamodbav:"WorkspaceID"`
	Version     int64  `dynamodbav:"Version"`
}

func workspacePK(workspaceID string) string {
	return fmt.Sprintf("WS#%s", workspaceID)
}

func versionSK(version int64) string {
	return fmt.Sprintf("V#%020d", version)
}

func lookupPK(id string) string {
	return fmt.Sprintf("CHANGE#%s", id)
}

func recordKey(workspaceID string, version int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
		"SK": &types.AttributeValueMemberS{Value: versionSK(version)},
	}
}

func headKey(workspaceID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: workspacePK(workspaceID)},
		"SK": &types.AttributeValueMemberS{Value: headSK},
	}
}

func lookupKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: lookupPK(id)},
		"SK": &types.AttributeValueMemberS{Value: lookupSK},
	}
}

func toItem(rec *entities.ChangeRecord) (ChangeItem, error) {
	before, err := encodeState(rec.BeforeState)
	if err != nil {
		return ChangeItem{}, err
	}
	after, err := encodeState(rec.AfterState)
	if err != nil {
		return ChangeItem{}, err
	}

	return ChangeItem{
		PK:          workspacePK(rec.WorkspaceID),
		SK:          versionSK(rec.Version),
		EntityType:  entityChange,
		ID:          rec.ID,
		WorkspaceID: rec.WorkspaceID,
		Version:     rec.Version,
		Operation:   string(rec.Operation),
		TargetType:  string(rec.TargetType),
		TargetID:    rec.TargetID,
		Actor:       string(rec.Actor),
		BeforeState: before,
		AfterState:  after,
		Status:      string(rec.Status),
		Reason:      rec.Reason,
		InverseOf:   rec.InverseOf,
		UndoneBy:    rec.UndoneBy,
		AppliedSeq:  rec.AppliedSeq,
		CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339Nano),
		AppliedAt:   formatTime(rec.AppliedAt),
		ResolvedAt:  formatTime(rec.ResolvedAt),
	}, nil
}

func (it ChangeItem) toRecord() (*entities.ChangeRecord, error) {
	rec := &entities.ChangeRecord{
		ID:          it.ID,
		WorkspaceID: it.WorkspaceID,
		Version:     it.Version,
		Operation:   valueobjects.Operation(it.Operation),
		TargetType:  valueobjects.TargetType(it.TargetType),
		TargetID:    it.TargetID,
		Actor:       valueobjects.Actor(it.Actor),
		Status:      valueobjects.ChangeStatus(it.Status),
		Reason:      it.Reason,
		InverseOf:   it.InverseOf,
		UndoneBy:    it.UndoneBy,
		AppliedSeq:  it.AppliedSeq,
	}

	var err error
	if rec.BeforeState, err = decodeState(it.BeforeState); err != nil {
		return nil, err
	}
	if rec.AfterState, err = decodeState(it.AfterState); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, it.CreatedAt); err != nil {
		return nil, fmt.Errorf("parse CreatedAt: %w", err)
	}
	if rec.AppliedAt, err = parseTime(it.AppliedAt); err != nil {
		return nil, err
	}
	if rec.ResolvedAt, err = parseTime(it.ResolvedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func encodeState(s *entities.State) (string, error) {
	if s == nil {
		return "", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode state: %w", err)
	}
	return string(data), nil
}

func decodeState(raw string) (*entities.State, error) {
	if raw == "" {
		return nil, nil
	}
	var s entities.State
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &s, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, fmt.Errorf("parse time: %w", err)
	}
	return &t, nil
}
