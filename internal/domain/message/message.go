package message

import (
	"fmt"

	"troffee-marketplace-client/internal/domain/shared"
)

// Message is a single chat message within a winning pair's thread. The
// server copy is authoritative; the client appends optimistically on send
// only with the server's returned saved object.
type Message struct {
	ID          int64            `json:"id"`
	WinningPair int64            `json:"winning_pair"`
	Sender      shared.UserRef   `json:"sender"`
	Recipient   shared.UserRef   `json:"recipient"`
	Content     string           `json:"content"`
	SentAt      shared.Timestamp `json:"sent_at"`
	IsRead      shared.ReadFlag  `json:"is_read"`
}

// UnreadBy reports whether the message counts as unread for the given user:
// addressed to them and not affirmatively marked read.
func (m Message) UnreadBy(userID int64) bool {
	return m.Recipient.ID == userID && !m.IsRead.Value()
}

// PairSide is one participant of a winning pair as serialized by the backend.
type PairSide struct {
	UserID   *int64 `json:"user_id"`
	UserIDCC *int64 `json:"userID"`
	ID       *int64 `json:"id"`
	Username string `json:"username"`
}

func (p PairSide) userID() (int64, bool) {
	switch {
	case p.UserID != nil:
		return *p.UserID, true
	case p.UserIDCC != nil:
		return *p.UserIDCC, true
	case p.ID != nil:
		return *p.ID, true
	}
	return 0, false
}

// PairItem is the item slice of a winning pair record.
type PairItem struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name,omitempty"`
	Seller *PairSide `json:"seller,omitempty"`
}

// WinningPair is a completed auction match between a seller and the winning
// bidder; each pair owns one message thread.
type WinningPair struct {
	ID            int64            `json:"id"`
	Item          *PairItem        `json:"item,omitempty"`
	WinningBidder *PairSide        `json:"winning_bidder,omitempty"`
	Status        string           `json:"status,omitempty"`
	CreatedAt     shared.Timestamp `json:"created_at,omitempty"`
}

// Conversation is the derived, never-persisted pairing of the current user
// with the counterpart of a winning pair. Recomputed on every poll cycle.
type Conversation struct {
	ID            string
	WinningPairID int64
	ItemID        int64
	MeID          int64
	OtherUserID   int64
	OtherUserName string
	Meta          *Meta
}

// Meta is the derived per-thread metadata layered onto a conversation. A
// nil Meta means the thread's fetch failed and its counts are absent, not
// zero.
type Meta struct {
	LastMessage   string
	LastMessageAt shared.Timestamp
	UnreadCount   int
}

// Derive pairs the user against a winning pair record. It reports false
// when the user occupies neither side (the record is not addressed to them)
// or the record is missing its participants.
func Derive(user shared.User, wp WinningPair) (Conversation, bool) {
	if wp.Item == nil || wp.Item.Seller == nil || wp.WinningBidder == nil {
		return Conversation{}, false
	}
	sellerID, ok := wp.Item.Seller.userID()
	if !ok {
		return Conversation{}, false
	}
	bidderID, ok := wp.WinningBidder.userID()
	if !ok {
		return Conversation{}, false
	}

	sellerName := wp.Item.Seller.Username
	if sellerName == "" {
		sellerName = "Seller"
	}
	bidderName := wp.WinningBidder.Username
	if bidderName == "" {
		bidderName = "Bidder"
	}

	conv := Conversation{
		ID:            fmt.Sprintf("wp-%d", wp.ID),
		WinningPairID: wp.ID,
		ItemID:        wp.Item.ID,
		MeID:          user.ID,
	}
	switch user.ID {
	case sellerID:
		conv.OtherUserID = bidderID
		conv.OtherUserName = bidderName
	case bidderID:
		conv.OtherUserID = sellerID
		conv.OtherUserName = sellerName
	default:
		return Conversation{}, false
	}
	return conv, true
}
