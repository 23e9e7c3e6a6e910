package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// parseLimit reads ?limit=. A missing value yields def; values outside
// 1..maxLimit are rejected.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	if n > maxLimit {
		return 0, fmt.Errorf("%w: limit exceeds %d", ErrBadRequest, maxLimit)
	}
	return n, nil
}

// pathParam returns the single path segment after prefix.
func pathParam(r *http.Request, prefix string) (string, bool) {
	p := strings.TrimPrefix(r.URL.Path, prefix)
	if p == "" || p == r.URL.Path || strings.Contains(p, "/") {
		return "", false
	}
	return p, true
}
