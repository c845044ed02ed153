package item

import (
	"encoding/json"
	"time"

	"troffee-marketplace-client/internal/domain/shared"
)

// Status values mirror the backend's item lifecycle.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusSold      = "sold"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Category is an auction item category.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Image is an additional image attached to an item.
type Image struct {
	ID         int64            `json:"id"`
	Image      string           `json:"image"`
	AltText    string           `json:"alt_text,omitempty"`
	Order      int              `json:"order"`
	UploadedAt shared.Timestamp `json:"uploaded_at"`
}

// Bid is a single bid on an item.
type Bid struct {
	ID     int64          `json:"id"`
	Item   int64          `json:"item"`
	Bidder shared.UserRef `json:"bidder"`
	// Money fields arrive as decimal strings from the backend; json.Number
	// keeps them intact either way.
	Amount json.Number      `json:"amount"`
	Placed shared.Timestamp `json:"time,omitempty"`
}

// Seller is the item-side view of a selling user.
type Seller struct {
	ID       int64   `json:"id"`
	UserID   int64   `json:"user_id"`
	Username string  `json:"username"`
	Rating   float64 `json:"rating,omitempty"`
}

// Item is the client's read-only working copy of an auction listing. The
// server copy is authoritative; every mutation re-fetches or merges the
// server's response.
type Item struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Categories   []Category       `json:"categories,omitempty"`
	CurrentBid   json.Number      `json:"current_bid,omitempty"`
	BuyPrice     json.Number      `json:"buy_price,omitempty"`
	FirstBid     json.Number      `json:"first_bid,omitempty"`
	NumberOfBids int              `json:"number_of_bids"`
	Country      string           `json:"country,omitempty"`
	Location     *Location        `json:"location,omitempty"`
	Started      shared.Timestamp `json:"started,omitempty"`
	Ends         shared.Timestamp `json:"ends,omitempty"`
	Seller       *Seller          `json:"seller,omitempty"`
	Status       string           `json:"status,omitempty"`
	MainImage    string           `json:"main_image,omitempty"`
	Images       []Image          `json:"additional_images,omitempty"`
	Bids         []Bid            `json:"bids,omitempty"`
}

// Location is the address record attached to an item.
type Location struct {
	ID        int64    `json:"id,omitempty"`
	Address   string   `json:"address,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
}

// Draft carries the writable listing fields, used both for creation and as
// the edit buffer that gets diffed against the original for updates.
type Draft struct {
	Name               string
	Description        string
	FirstBid           string
	BuyPrice           string
	Address            string
	Longitude          string
	Latitude           string
	Country            string
	Ends               time.Time
	Started            time.Time
	PublishImmediately bool
	Categories         []string
	MainImage          *Upload
	Images             []Upload
}

// Upload is an image file attached to a multipart item submission.
type Upload struct {
	Filename string
	Data     []byte
}

// DraftOf builds an edit buffer from an existing listing so that an edited
// copy can be diffed against it.
func DraftOf(it Item) Draft {
	d := Draft{
		Name:        it.Name,
		Description: it.Description,
		FirstBid:    it.FirstBid.String(),
		BuyPrice:    it.BuyPrice.String(),
		Country:     it.Country,
		Ends:        it.Ends.Time,
		Started:     it.Started.Time,
	}
	if it.Location != nil {
		d.Address = it.Location.Address
	}
	for _, c := range it.Categories {
		d.Categories = append(d.Categories, c.Name)
	}
	return d
}

// Filter holds the list-view query controls.
type Filter struct {
	Search   string
	Category string
	Country  string
	Ordering string
	Page     int
}
