package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands"
	cmdbus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/commands/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/projections"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries"
	querybus "github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/queries/bus"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/application/services"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/config"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/entities"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/domain/core/valueobjects"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/messaging/logging"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/observability"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/memory"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/infrastructure/persistence/persistencetest"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/handlers"
	"github.com/HansC-anafter/mindscape-ai-local-core-sub007/interfaces/http/rest/middleware"
	pkgerrors "github.com/HansC-anafter/mindscape-ai-local-core-sub007/pkg/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testWorkspace = "ws-http"
	testSecret    = "test-secret"
)

func newServer(t *testing.T, cfg RouterConfig, ready ReadyFunc) (*httptest.Server, *observability.Collector) {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NopRecorder{}
	domain := config.DefaultDomainConfig()
	repo := memory.NewChangeLogRepository()
	publisher := logging.NewPublisher(logger)

	snapshots := services.NewSnapshotManager(repo, metrics, logger, true)
	changes := services.NewChangeLogService(repo, snapshots, publisher, metrics, domain.ChangeLog, logger)
	approvals := services.NewApprovalProcessor(repo, snapshots, publisher, metrics, domain.ChangeLog.MaxBatchSize, logger)
	undo := services.NewUndoEngine(repo, snapshots, publisher, metrics, logger)
	projector := projections.NewGraphProjector(domain.Layout, metrics, logger)

	cb := cmdbus.NewCommandBus()
	qb := querybus.NewQueryBus()
	require.NoError(t, commands.NewHandlers(changes, approvals, undo).Register(cb))
	require.NoError(t, queries.NewHandlers(changes, snapshots, projector).Register(qb))

	collector := observability.NewCollector("graph_test")
	mux, err := NewRouter(cb, qb, collector, ready, cfg, logger).Setup()
	require.NoError(t, err)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, collector
}

func do(t *testing.T, srv *httptest.Server, method, path string, body interface{}, token string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

func signToken(t *testing.T, sub string, workspaces []string, expires time.Time) string {
	t.Helper()
	claims := middleware.Claims{
		UserID:     sub,
		Workspaces: workspaces,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "graph-test",
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestHealthAndReadiness(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{}, nil)
	resp, body := do(t, srv, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"healthy"}`, string(body))

	resp, _ = do(t, srv, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down, _ := newServer(t, RouterConfig{}, func(context.Context) error { return errors.New("table missing") })
	resp, body = do(t, down, http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.JSONEq(t, `{"status":"unavailable"}`, string(body))
}

func TestChangeLifecycleOverHTTP(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{}, nil)
	base := "/api/v1/workspaces/" + testWorkspace

	draft := persistencetest.NodeDraft("", "n1", "P")
	resp, body := do(t, srv, http.MethodPost, base+"/changes", draft, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	rec := decode[entities.ChangeRecord](t, body)
	assert.Equal(t, testWorkspace, rec.WorkspaceID)
	assert.Equal(t, valueobjects.ChangePending, rec.Status)

	resp, body = do(t, srv, http.MethodGet, base+"/changes/pending?actor=automated_agent", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	pending := decode[handlers.PendingResponse](t, body)
	require.Len(t, pending.Changes, 1)
	assert.Equal(t, rec.ID, pending.Changes[0].ID)

	resp, body = do(t, srv, http.MethodGet, base+"/graph?include_proposed=true", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[projections.GraphView](t, body)
	require.Len(t, view.Nodes, 1)
	assert.True(t, view.Nodes[0].Ghost)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/changes/resolve", handlers.ResolveRequest{
		WorkspaceID: testWorkspace,
		ChangeIDs:   []string{rec.ID, "missing"},
		Decision:    valueobjects.DecisionApprove,
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	summary := decode[services.Summary](t, body)
	assert.Equal(t, []string{rec.ID}, summary.Applied)
	require.Len(t, summary.Failed, 1)
	assert.Equal(t, "missing", summary.Failed[0].ID)
	assert.Equal(t, pkgerrors.CodeChangeNotFound, summary.Failed[0].Code)

	resp, body = do(t, srv, http.MethodGet, base+"/layout", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	layoutView := decode[queries.LayoutView](t, body)
	assert.Equal(t, int64(1), layoutView.Version)
	assert.Contains(t, layoutView.Positions, "n1")

	resp, body = do(t, srv, http.MethodGet, "/api/v1/changes/"+rec.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, valueobjects.ChangeApplied, decode[entities.ChangeRecord](t, body).Status)

	resp, body = do(t, srv, http.MethodPost, "/api/v1/changes/undo", handlers.UndoRequest{ChangeID: rec.ID}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	inverse := decode[entities.ChangeRecord](t, body)
	assert.Equal(t, rec.ID, inverse.InverseOf)
	assert.Equal(t, valueobjects.OpDeleteNode, inverse.Operation)

	resp, body = do(t, srv, http.MethodGet, base+"/changes/history?limit=10", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decode[services.History](t, body)
	assert.Len(t, history.Entries, 2)
	assert.Equal(t, int64(2), history.CurrentVersion)
	assert.Equal(t, history.LogVersion, history.CurrentVersion)
}

func TestErrorResponses(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{}, nil)
	base := "/api/v1/workspaces/" + testWorkspace

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "workspace mismatch",
			method: http.MethodPost,
			path:   base + "/changes",
			body:   persistencetest.NodeDraft("other", "n1", "P"),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown change",
			method: http.MethodGet,
			path:   "/api/v1/changes/nope",
			status: http.StatusNotFound,
			code:   pkgerrors.CodeChangeNotFound,
		},
		{
			name:   "malformed cursor",
			method: http.MethodGet,
			path:   base + "/changes/history?cursor=abc",
			status: http.StatusBadRequest,
		},
		{
			name:   "both decision forms",
			method: http.MethodPost,
			path:   "/api/v1/changes/resolve",
			body: handlers.ResolveRequest{
				WorkspaceID: testWorkspace,
				ChangeIDs:   []string{"a"},
				Decision:    valueobjects.DecisionApprove,
				Decisions:   []services.Decision{{ChangeID: "b", Decision: valueobjects.DecisionReject}},
			},
			status: http.StatusBadRequest,
		},
		{
			name:   "bad include_proposed",
			method: http.MethodGet,
			path:   base + "/graph?include_proposed=maybe",
			status: http.StatusBadRequest,
		},
		{
			name:   "undo without id",
			method: http.MethodPost,
			path:   "/api/v1/changes/undo",
			body:   handlers.UndoRequest{},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			errResp := decode[pkgerrors.ErrorResponse](t, body)
			assert.True(t, errResp.Error)
			assert.NotEmpty(t, errResp.RequestID)
			if tt.code != "" {
				assert.Equal(t, tt.code, errResp.Code)
			}
		})
	}
}

func TestAuthentication(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{EnableAuth: true, JWTSecret: testSecret, JWTIssuer: "graph-test"}, nil)
	path := "/api/v1/workspaces/" + testWorkspace + "/changes/pending"

	resp, _ := do(t, srv, http.MethodGet, path, nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, path, nil, signToken(t, "u1", nil, time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, path, nil, signToken(t, "u1", []string{"elsewhere"}, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := do(t, srv, http.MethodGet, path, nil, signToken(t, "u1", []string{testWorkspace}, time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// health stays public
	resp, _ = do(t, srv, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthRequiresSecret(t *testing.T) {
	_, err := NewRouter(cmdbus.NewCommandBus(), querybus.NewQueryBus(), nil, nil, RouterConfig{EnableAuth: true}, zap.NewNop()).Setup()
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{}, nil)
	do(t, srv, http.MethodGet, "/api/v1/workspaces/"+testWorkspace+"/layout", nil, "")

	resp, body := do(t, srv, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `graph_test_http_requests_total{method="GET",route="/api/v1/workspaces/{workspaceID}/layout",status="200"} 1`), string(body))
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newServer(t, RouterConfig{EnableCORS: true, AllowedOrigins: []string{"http://localhost:3000"}}, nil)
	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/changes/resolve", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
}
