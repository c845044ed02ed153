package inbound

import (
	"context"

	"troffee-marketplace-client/internal/domain/item"
	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/domain/shared"
)

// AccountService covers session lifecycle and profile management.
type AccountService interface {
	Login(ctx context.Context, username, password string) (shared.Session, error)
	Register(ctx context.Context, form RegistrationForm) error
	Profile(ctx context.Context) (shared.User, error)
	UpdateProfile(ctx context.Context, original, edited shared.User) (shared.User, error)
	UploadProfileImage(ctx context.Context, filename string, data []byte) error
	Logout() error
}

// RegistrationForm carries the fields the registration endpoint requires.
// New accounts land in the waiting room until an administrator approves them.
type RegistrationForm struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	PhoneNumber     string `json:"phone_number"`
	AddressLine1    string `json:"address_line1"`
	AddressLine2    string `json:"address_line2,omitempty"`
	City            string `json:"city,omitempty"`
	State           string `json:"state,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
	Country         string `json:"country,omitempty"`
	AFM             string `json:"afm,omitempty"`
}

// Page carries one page of a paginated listing.
type Page[T any] struct {
	Results  []T
	Count    int64
	Next     string
	Previous string
}

// AuctionService covers auction browsing, listing CRUD and bidding.
type AuctionService interface {
	List(ctx context.Context, f item.Filter) (Page[item.Item], error)
	Get(ctx context.Context, id int64) (item.Item, error)
	EndingSoon(ctx context.Context) ([]item.Item, error)
	Categories(ctx context.Context) ([]item.Category, error)
	Create(ctx context.Context, draft item.Draft) (item.Item, error)
	Update(ctx context.Context, id int64, original, edited item.Draft) (item.Item, error)
	Publish(ctx context.Context, id int64) (item.Item, error)
	Delete(ctx context.Context, id int64) error
	Bids(ctx context.Context, itemID int64) ([]item.Bid, error)
	PlaceBid(ctx context.Context, itemID int64, amount string) (item.Bid, error)
	RateWinningPair(ctx context.Context, pairID int64, rating int) error
}

// ConversationUpdate is one refresh of the derived conversation view.
type ConversationUpdate struct {
	Conversations []message.Conversation
	UnreadTotal   int
}

// MessagingService covers winning-pair threads, the derived conversation
// view and chat sessions.
type MessagingService interface {
	WinningPairs(ctx context.Context) ([]message.WinningPair, error)
	Conversations(ctx context.Context) ([]message.Conversation, error)
	RefreshMeta(ctx context.Context, convs []message.Conversation) (map[int64]message.Meta, int)
	FetchThread(ctx context.Context, pairID int64) ([]message.Message, bool, error)
	Send(ctx context.Context, conv message.Conversation, content string) (message.Message, error)
	MarkRead(ctx context.Context, meID int64, msgs []message.Message)
	DeleteConversation(ctx context.Context, pairID int64) error
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	// Pending selects accounts awaiting approval (is_active false) when
	// true, approved accounts when false.
	Pending *bool
	// Active filters on is_active directly.
	Active *bool
}

// AdminService covers the administrator console: user management and the
// registration approval workflow.
type AdminService interface {
	Users(ctx context.Context, f UserFilter) ([]shared.User, error)
	UpdateUser(ctx context.Context, original, edited shared.User) (shared.User, error)
	DeleteUser(ctx context.Context, id int64) error
	Approve(ctx context.Context, id int64) error
	Deny(ctx context.Context, id int64) error
	RequestChanges(ctx context.Context, id int64, note string) error
}
