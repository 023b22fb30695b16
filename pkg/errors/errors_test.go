package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAppErrorIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"stale matches sentinel", NewStaleStateConflict("n1", "label changed"), ErrStaleStateConflict, true},
		{"wrapped stale matches sentinel", fmt.Errorf("apply: %w", NewStaleStateConflict("n1", "x")), ErrStaleStateConflict, true},
		{"already resolved is not stale", NewAlreadyResolved("c1", "applied"), ErrStaleStateConflict, false},
		{"dangling matches sentinel", NewDanglingEdgeReference("e1", "n2"), ErrDanglingEdgeReference, true},
		{"change not found matches", NewChangeNotFound("c9"), ErrChangeNotFound, true},
		{"plain not found lacks code", NewNotFoundError("workspace"), ErrChangeNotFound, false},
		{"timeout matches", NewTimeoutError("resolve"), ErrTimeout, true},
		{"network matches", NewNetworkError("dial failed", stderrors.New("refused")), ErrNetworkFailure, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stderrors.Is(tt.err, tt.target))
		})
	}
}

func TestWrapKeepsCodeAndLeavesOriginalUntouched(t *testing.T) {
	orig := NewAlreadyResolved("c1", "rejected")
	wrapped := Wrap(orig, "undo")

	assert.True(t, stderrors.Is(wrapped, ErrAlreadyResolved))
	assert.Contains(t, wrapped.Error(), "undo: change c1 is already rejected")
	assert.Equal(t, "change c1 is already rejected", orig.Message)

	plain := Wrap(stderrors.New("boom"), "load")
	assert.True(t, IsType(plain, ErrorTypeInternal))
	assert.Nil(t, Wrap(nil, "noop"))
}

func TestReason(t *testing.T) {
	assert.Equal(t, "", Reason(nil))
	assert.Equal(t, "STALE_STATE_CONFLICT: stale state for n1: label changed",
		Reason(NewStaleStateConflict("n1", "label changed")))
	assert.Equal(t, "boom", Reason(stderrors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewNetworkError("x", nil)))
	assert.True(t, IsRetryable(NewTimeoutError("x")))
	assert.True(t, IsRetryable(NewUnavailableError("x")))
	assert.False(t, IsRetryable(NewStaleStateConflict("n", "x")))
}

func TestErrorHandler(t *testing.T) {
	h := NewErrorHandler(zap.NewNop(), false)

	t.Run("app error keeps status and code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/v1/changes/undo", nil)

		h.Handle(rec, req, NewAlreadyResolved("c1", "undone"))

		require.Equal(t, http.StatusConflict, rec.Code)
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.Error)
		assert.Equal(t, CodeAlreadyResolved, resp.Code)
		assert.Equal(t, "c1", resp.Details["change_id"])

		back := FromResponse(rec.Code, resp)
		assert.True(t, stderrors.Is(back, ErrAlreadyResolved))
	})

	t.Run("generic error hides message", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)

		h.Handle(rec, req, stderrors.New("secret detail"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret detail")
	})

	t.Run("recover converts panic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("kaboom") })

		h.Recover(panicky).ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
