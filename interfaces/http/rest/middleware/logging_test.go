package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerRecordsRouteAndWorkspace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	r := chi.NewRouter()
	r.Use(Logger(zap.New(core)))
	r.Get("/workspaces/{workspaceID}/graph", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/workspaces/ws-1/graph", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.FilterMessage("HTTP Request").AllUntimed()
	require.Len(t, entries, 2)

	ok := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "ws-1", ok["workspaceID"])
	assert.Equal(t, "/workspaces/{workspaceID}/graph", ok["route"])
	assert.EqualValues(t, http.StatusOK, ok["status"])

	failed := entries[1].ContextMap()
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.NotContains(t, failed, "workspaceID")
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, zapcore.InfoLevel, levelFor(http.StatusCreated))
	assert.Equal(t, zapcore.WarnLevel, levelFor(http.StatusNotFound))
	assert.Equal(t, zapcore.ErrorLevel, levelFor(http.StatusBadGateway))
}
