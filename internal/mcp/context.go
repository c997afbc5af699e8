package mcp

import "context"

// sessionContextKey is the context key for the caller's portal session.
type sessionContextKey struct{}

// SessionContext identifies the authorized portal session behind an MCP call.
type SessionContext struct {
	SessionID string
}

// WithSessionContext returns a new context with the given SessionContext attached.
func WithSessionContext(ctx context.Context, sc SessionContext) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sc)
}

// GetSessionContext extracts the SessionContext from the context, if present.
func GetSessionContext(ctx context.Context) (SessionContext, bool) {
	sc, ok := ctx.Value(sessionContextKey{}).(SessionContext)
	return sc, ok && sc.SessionID != ""
}
