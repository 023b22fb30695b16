package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes carried by change-log failures. Clients match on these.
const (
	CodeStaleState       = "STALE_STATE_CONFLICT"
	CodeAlreadyResolved  = "ALREADY_RESOLVED"
	CodeDanglingEdge     = "DANGLING_EDGE_REFERENCE"
	CodeChangeNotFound   = "CHANGE_NOT_FOUND"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNetworkFailure   = "NETWORK_FAILURE"
	CodeTimeout          = "TIMEOUT"
)

// Sentinels for errors.Is. Never mutate them; use the constructors below.
var (
	ErrStaleStateConflict    = &AppError{Type: ErrorTypeConflict, Code: CodeStaleState, Message: "stale state conflict"}
	ErrAlreadyResolved       = &AppError{Type: ErrorTypeConflict, Code: CodeAlreadyResolved, Message: "change already resolved"}
	ErrDanglingEdgeReference = &AppError{Type: ErrorTypeConflict, Code: CodeDanglingEdge, Message: "dangling edge reference"}
	ErrChangeNotFound        = &AppError{Type: ErrorTypeNotFound, Code: CodeChangeNotFound, Message: "change not found"}
	ErrNetworkFailure        = &AppError{Type: ErrorTypeNetwork, Code: CodeNetworkFailure, Message: "network failure"}
	ErrTimeout               = &AppError{Type: ErrorTypeTimeout, Code: CodeTimeout, Message: "timeout"}
)

// NewStaleStateConflict reports that a change's before_state no longer matches the snapshot.
func NewStaleStateConflict(targetID, detail string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeStaleState,
		Message:    fmt.Sprintf("stale state for %s: %s", targetID, detail),
		Details:    map[string]interface{}{"target_id": targetID},
		HTTPStatus: http.StatusConflict,
	}
}

// NewAlreadyResolved reports a transition requested on a record in the wrong status.
func NewAlreadyResolved(changeID, status string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeAlreadyResolved,
		Message:    fmt.Sprintf("change %s is already %s", changeID, status),
		Details:    map[string]interface{}{"change_id": changeID, "status": status},
		HTTPStatus: http.StatusConflict,
	}
}

// NewDanglingEdgeReference reports an edge whose endpoint is missing, or a node
// that cannot be removed while edges still reference it.
func NewDanglingEdgeReference(edgeID, nodeID string) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       CodeDanglingEdge,
		Message:    fmt.Sprintf("edge %s references node %s which is not in a consistent state", edgeID, nodeID),
		Details:    map[string]interface{}{"edge_id": edgeID, "node_id": nodeID},
		HTTPStatus: http.StatusUnprocessableEntity,
	}
}

// NewChangeNotFound reports an unknown change id.
func NewChangeNotFound(changeID string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeChangeNotFound,
		Message:    fmt.Sprintf("change %s not found", changeID),
		Details:    map[string]interface{}{"change_id": changeID},
		HTTPStatus: http.StatusNotFound,
	}
}

// Reason renders an error as the short reason string used in batch results.
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if appErr := GetAppError(err); appErr != nil {
		if appErr.Code != "" {
			return fmt.Sprintf("%s: %s", appErr.Code, appErr.Message)
		}
		return appErr.Message
	}
	return err.Error()
}

// IsRetryable reports whether a failure may succeed on a plain retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkFailure) || errors.Is(err, ErrTimeout) || IsType(err, ErrorTypeUnavailable)
}
