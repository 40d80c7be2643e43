package shared

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/tasktracker-api/internal/domain"
)

// ContextKey is the type of request-scoped context keys.
type ContextKey string

// Context keys for request-scoped values
const (
	// UserIDContextKey holds the authenticated user's uuid.UUID
	UserIDContextKey ContextKey = "userID"

	// RoleContextKey holds the authenticated user's domain.UserRole
	RoleContextKey ContextKey = "userRole"

	// TraceIDKey holds the request trace ID
	TraceIDKey ContextKey = "traceID"

	// TraceIDLength is the number of random bytes in a trace ID
	TraceIDLength = 16
)

// SetTraceID adds a fresh trace ID to the context.
func SetTraceID(ctx context.Context) context.Context {
	return context.WithValue(ctx, TraceIDKey, generateTraceID())
}

// GetTraceID returns the trace ID in ctx, or "" if there is none.
func GetTraceID(ctx context.Context) string {
	traceID, ok := ctx.Value(TraceIDKey).(string)
	if !ok {
		return ""
	}
	return traceID
}

// WithIdentity stores the authenticated user ID and role in ctx.
func WithIdentity(ctx context.Context, userID uuid.UUID, role domain.UserRole) context.Context {
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, RoleContextKey, role)
}

// UserIDFromContext returns the authenticated user ID.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(UserIDContextKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, false
	}
	return id, true
}

// RoleFromContext returns the authenticated user's role.
func RoleFromContext(ctx context.Context) (domain.UserRole, bool) {
	role, ok := ctx.Value(RoleContextKey).(domain.UserRole)
	return role, ok
}

func generateTraceID() string {
	b := make([]byte, TraceIDLength)
	n, err := rand.Read(b)
	if err != nil || n != TraceIDLength {
		slog.Error("failed to generate random trace ID",
			"error", err,
			"bytes_read", n,
			"fallback", "time-based generation")
		return generateFallbackTraceID()
	}
	return hex.EncodeToString(b)
}

// generateFallbackTraceID derives an ID from the clock. Never static.
func generateFallbackTraceID() string {
	b := make([]byte, TraceIDLength)
	now := time.Now()
	binary.BigEndian.PutUint64(b[:8], uint64(now.UnixNano()))
	binary.BigEndian.PutUint32(b[8:12], uint32(now.Nanosecond()))
	binary.BigEndian.PutUint32(b[12:16], uint32(now.Unix()))
	return hex.EncodeToString(b)
}
