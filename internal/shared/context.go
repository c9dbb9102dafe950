package shared

import "context"

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}

// Alive reports whether the request that started an asynchronous step is still
// waiting for it. Screens check it after every awaited upstream call and skip
// state writes once the browser has gone away.
func Alive(ctx context.Context) bool {
	return ctx.Err() == nil
}
