package shared

import "errors"

// Domain-specific errors
var (
	// Session errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoRefreshToken   = errors.New("no refresh token stored")
	ErrSessionExpired   = errors.New("session expired")
	ErrPendingApproval  = errors.New("account pending administrator approval")

	// Auction errors
	ErrItemNotFound    = errors.New("item not found")
	ErrNothingToUpdate = errors.New("no fields changed")

	// Messaging errors
	ErrConversationClosed = errors.New("conversation closed")
	ErrEmptyMessage       = errors.New("message content is empty")

	// Payload errors
	ErrUnexpectedPayload = errors.New("unexpected payload shape")

	// Token store errors
	ErrStoreUnavailable = errors.New("token store unavailable")
)
