package outbound

import (
	"context"

	"troffee-marketplace-client/internal/domain/shared"
)

// ChangeType classifies a token store change event.
type ChangeType string

const (
	// ChangeUpdated fires when the stored session content changed but an
	// access token is still present.
	ChangeUpdated ChangeType = "session.updated"
	// ChangeCleared fires when the access token disappeared (logout
	// elsewhere, expiry cleared).
	ChangeCleared ChangeType = "session.cleared"
)

// Change is a token store change notification.
type Change struct {
	Type ChangeType
}

// TokenStore is the one piece of cross-component mutable shared state: the
// persisted access/refresh token pair plus user identity. Any component may
// overwrite the access token after a successful refresh; any component may
// clear the whole session on logout. Writes are serialized by the
// implementation; concurrent refreshes race benignly (last write wins).
type TokenStore interface {
	// Session returns the current stored session (zero value when logged out).
	Session() shared.Session

	// Access returns the stored access token, or "" when absent.
	Access() string

	// RefreshToken returns the stored refresh token, or "" when absent.
	RefreshToken() string

	// SetAccess replaces the access token in place, keeping the rest of the
	// session.
	SetAccess(token string) error

	// SetSession replaces the whole stored session.
	SetSession(s shared.Session) error

	// Clear destroys the stored session.
	Clear() error

	// Watch emits a Change whenever the stored session is modified out of
	// band, until ctx is done. Detection is best-effort: a filesystem
	// notification plus a periodic re-read.
	Watch(ctx context.Context) <-chan Change
}
