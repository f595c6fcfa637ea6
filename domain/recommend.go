package domain

import "context"

// AccessLevel of a connection.
type AccessLevel string

const (
	AccessAuthenticated AccessLevel = "authenticated"
	AccessAnonymous     AccessLevel = "anonymous"
)

// SeedProvider produces the opening coaching message for a session.
// Failures are caught by the caller and substituted, never fatal.
type SeedProvider interface {
	SeedMessage(ctx context.Context, userID string) (string, error)
}
