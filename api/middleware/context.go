package middleware

import "context"

type (
	adminSubjectKey struct{}
	requestIDKey    struct{}
)

// AdminSubjectFromContext returns the subject of the verified admin token,
// or "" outside the admin routes.
func AdminSubjectFromContext(ctx context.Context) string {
	return stringValue(ctx, adminSubjectKey{})
}

func WithAdminSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminSubjectKey{}, subject)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey{})
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func stringValue(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
