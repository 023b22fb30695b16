// Package client talks to the change-log HTTP API and keeps a local view of
// one workspace fresh.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/ports"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/handlers"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/common"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds configuration for the client circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// Config configures a Client
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Breaker BreakerConfig
}

// Client calls the change-log API. Transport failures come back as
// NETWORK_FAILURE or TIMEOUT, API failures as the server's *errors.AppError.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New creates a client for cfg.BaseURL
func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = DefaultBreakerConfig()
	}
	bc := cfg.Breaker

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "changelog-api",
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bc.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= bc.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		// Only transport failures and 5xx count against the API.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if pkgerrors.IsRetryable(err) {
				return false
			}
			appErr := pkgerrors.GetAppError(err)
			return appErr != nil && appErr.HTTPStatus < http.StatusInternalServerError
		},
	})
	return c
}

// ListPending fetches the pending queue of a workspace
func (c *Client) ListPending(ctx context.Context, workspaceID string, filter ports.PendingFilter) ([]*entities.ChangeRecord, error) {
	q := url.Values{}
	setIf(q, "actor", string(filter.Actor))
	setIf(q, "operation", string(filter.Operation))
	setIf(q, "target_type", string(filter.TargetType))
	setIf(q, "project_id", filter.ProjectID)

	var out handlers.PendingResponse
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/changes/pending"), q, nil, &out); err != nil {
		return nil, err
	}
	return out.Changes, nil
}

// Propose appends a pending change
func (c *Client) Propose(ctx context.Context, draft entities.ChangeDraft) (*entities.ChangeRecord, error) {
	if draft.WorkspaceID == "" {
		return nil, pkgerrors.NewValidationError("workspace id is required")
	}
	var out entities.ChangeRecord
	if err := c.do(ctx, http.MethodPost, workspacePath(draft.WorkspaceID, "/changes"), nil, draft, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Resolve applies one decision to every id
func (c *Client) Resolve(ctx context.Context, workspaceID string, changeIDs []string, decision valueobjects.Decision, reason string) (*services.Summary, error) {
	return c.resolve(ctx, handlers.ResolveRequest{
		WorkspaceID: workspaceID,
		ChangeIDs:   changeIDs,
		Decision:    decision,
		Reason:      reason,
	})
}

// ResolveDecisions sends a decision per id
func (c *Client) ResolveDecisions(ctx context.Context, workspaceID string, decisions []services.Decision) (*services.Summary, error) {
	return c.resolve(ctx, handlers.ResolveRequest{WorkspaceID: workspaceID, Decisions: decisions})
}

func (c *Client) resolve(ctx context.Context, req handlers.ResolveRequest) (*services.Summary, error) {
	var out services.Summary
	if err := c.do(ctx, http.MethodPost, "/api/v1/changes/resolve", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History fetches a page of the log, newest first. A zero cursor starts at the head.
func (c *Client) History(ctx context.Context, workspaceID string, limit int, cursor int64) (*services.History, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	setIf(q, "cursor", common.FormatCursor(cursor))

	var out services.History
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/changes/history"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one change record
func (c *Client) Get(ctx context.Context, changeID string) (*entities.ChangeRecord, error) {
	var out entities.ChangeRecord
	if err := c.do(ctx, http.MethodGet, "/api/v1/changes/"+url.PathEscape(changeID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Undo reverses an applied change and returns the inverse record
func (c *Client) Undo(ctx context.Context, changeID string) (*entities.ChangeRecord, error) {
	var out entities.ChangeRecord
	if err := c.do(ctx, http.MethodPost, "/api/v1/changes/undo", nil, handlers.UndoRequest{ChangeID: changeID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Graph fetches the projected graph
func (c *Client) Graph(ctx context.Context, workspaceID string, includeProposed bool) (*projections.GraphView, error) {
	q := url.Values{}
	if includeProposed {
		q.Set("include_proposed", "true")
	}
	var out projections.GraphView
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/graph"), q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Layout fetches positions and group blocks
func (c *Client) Layout(ctx context.Context, workspaceID string) (*queries.LayoutView, error) {
	var out queries.LayoutView
	if err := c.do(ctx, http.MethodGet, workspacePath(workspaceID, "/layout"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, query, body, out)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return pkgerrors.NewNetworkError("change-log API temporarily unavailable", err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.NewValidationError(fmt.Sprintf("encode request: %v", err))
		}
		reader = bytes.NewReader(raw)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var envelope pkgerrors.ErrorResponse
		if jsonErr := json.Unmarshal(data, &envelope); jsonErr != nil || envelope.Message == "" {
			return &pkgerrors.AppError{
				Type:       pkgerrors.ErrorTypeInternal,
				Message:    fmt.Sprintf("%s %s: unexpected status %d", method, path, resp.StatusCode),
				HTTPStatus: resp.StatusCode,
			}
		}
		return pkgerrors.FromResponse(resp.StatusCode, envelope)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return pkgerrors.NewInternalError(fmt.Sprintf("decode %s %s: %v", method, path, err))
	}
	return nil
}

// transportError maps request failures onto TIMEOUT or NETWORK_FAILURE
func transportError(method, path string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return pkgerrors.NewTimeoutError(method + " " + path).WithCause(err)
	}
	return pkgerrors.NewNetworkError(fmt.Sprintf("%s %s failed", method, path), err)
}

func workspacePath(workspaceID, suffix string) string {
	return "/api/v1/workspaces/" + url.PathEscape(workspaceID) + suffix
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
