package web

import (
	"context"
	"net/http"
	"strings"

	"github.com/JonMunkholm/catalog-import/internal/core"
)

// userIDHeader carries the opaque id of the user driving the import. The
// API does not authenticate users; it only records who asked.
const userIDHeader = "X-User-ID"

// WithRequestMetadata adds the user id and client IP to ctx for batch
// records and the audit log. RemoteAddr is already resolved by
// TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	if user := strings.TrimSpace(r.Header.Get(userIDHeader)); user != "" {
		ctx = core.ContextWithUserID(ctx, user)
	}
	return ctx
}
