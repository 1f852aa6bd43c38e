package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/memberimport/internal/core"
)

// WithRequestMetadata records the client IP and User-Agent for the import history.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithRequester(ctx, clientIP(r), r.UserAgent())
}
