package common

import (
	"net/http"
	"strconv"
)

// CursorParams is a limit plus an opaque, version based cursor
type CursorParams struct {
	Limit  int
	Cursor int64
}

// ExtractCursorParams reads limit and cursor from the query string. Limit is
// clamped to [1, maxLimit]; a missing or malformed value falls back to defaultLimit.
func ExtractCursorParams(r *http.Request, defaultLimit, maxLimit int) CursorParams {
	params := CursorParams{Limit: defaultLimit}

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil && l > 0 {
			params.Limit = l
		}
	}
	if params.Limit > maxLimit {
		params.Limit = maxLimit
	}

	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		if c, err := ParseCursor(cursor); err == nil {
			params.Cursor = c
		}
	}

	return params
}

// FormatCursor renders a cursor for responses. Zero means "no further page".
func FormatCursor(c int64) string {
	if c <= 0 {
		return ""
	}
	return strconv.FormatInt(c, 10)
}

// ParseCursor parses a cursor produced by FormatCursor
func ParseCursor(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
