package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/domain/item"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/inbound"
	"troffee-marketplace-client/internal/ports/outbound"
)

// AuctionService implements auction browsing, listing CRUD and bidding. The
// server stays authoritative: every mutation re-fetches or merges the
// server's returned resource rather than trusting local state.
type AuctionService struct {
	gw       *gateway.Gateway
	cache    outbound.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

type AuctionServiceParams struct {
	Gateway  *gateway.Gateway
	Cache    outbound.Cache
	CacheTTL time.Duration
	Logger   zerolog.Logger
}

// NewAuctionService creates a new auction service
func NewAuctionService(params AuctionServiceParams) *AuctionService {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &AuctionService{
		gw:       params.Gateway,
		cache:    params.Cache,
		cacheTTL: ttl,
		logger:   params.Logger.With().Str("component", "auction_service").Logger(),
	}
}

func (f filterQuery) encode() url.Values {
	query := url.Values{}
	if f.Search != "" {
		query.Set("search", f.Search)
	}
	if f.Category != "" {
		query.Set("category", f.Category)
	}
	if f.Country != "" {
		query.Set("country", f.Country)
	}
	if f.Ordering != "" {
		query.Set("ordering", f.Ordering)
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	query.Set("page", strconv.Itoa(page))
	return query
}

type filterQuery item.Filter

// List fetches one page of listings matching the filter. Pages are cached
// briefly keyed by the encoded query; the cache is advisory only.
func (s *AuctionService) List(ctx context.Context, f item.Filter) (inbound.Page[item.Item], error) {
	query := filterQuery(f).encode()
	cacheKey := "items:" + query.Encode()

	var page inbound.Page[item.Item]
	if payload, ok := s.cache.Get(ctx, cacheKey); ok {
		if err := json.Unmarshal(payload, &page); err == nil {
			return page, nil
		}
		s.cache.Invalidate(ctx, cacheKey)
	}

	var items []item.Item
	meta, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "items/",
		Query:  query,
	}, &items)
	if err != nil {
		return inbound.Page[item.Item]{}, err
	}

	page = inbound.Page[item.Item]{Results: items}
	if meta != nil {
		page.Count = meta.Count
		page.Next = meta.Next
		page.Previous = meta.Previous
	} else {
		page.Count = int64(len(items))
	}

	if payload, err := json.Marshal(page); err == nil {
		s.cache.Set(ctx, cacheKey, payload, s.cacheTTL)
	}
	return page, nil
}

// Get fetches a single listing.
func (s *AuctionService) Get(ctx context.Context, id int64) (item.Item, error) {
	var it item.Item
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("items/%d/", id),
	}, &it); err != nil {
		return item.Item{}, err
	}
	return it, nil
}

// EndingSoon fetches the listings closest to their end time.
func (s *AuctionService) EndingSoon(ctx context.Context) ([]item.Item, error) {
	var items []item.Item
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "items/ending_soon/",
	}, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Categories fetches the category list, cached since it changes rarely.
func (s *AuctionService) Categories(ctx context.Context) ([]item.Category, error) {
	const cacheKey = "categories"

	var categories []item.Category
	if payload, ok := s.cache.Get(ctx, cacheKey); ok {
		if err := json.Unmarshal(payload, &categories); err == nil {
			return categories, nil
		}
		s.cache.Invalidate(ctx, cacheKey)
	}

	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "categories/",
	}, &categories); err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(categories); err == nil {
		s.cache.Set(ctx, cacheKey, payload, s.cacheTTL)
	}
	return categories, nil
}

// Create submits a new listing as multipart form data (image upload rules
// out JSON here).
func (s *AuctionService) Create(ctx context.Context, draft item.Draft) (item.Item, error) {
	form, err := buildItemForm(draft)
	if err != nil {
		return item.Item{}, err
	}

	var created item.Item
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "items/",
		Form:   form,
	}, &created); err != nil {
		return item.Item{}, err
	}

	s.logger.Info().Int64("item_id", created.ID).Str("name", created.Name).Msg("Listing created")
	return created, nil
}

// Update diffs the edit buffer against the original and submits only the
// changed fields; the form becomes multipart only when an image changed.
func (s *AuctionService) Update(ctx context.Context, id int64, original, edited item.Draft) (item.Item, error) {
	changes := DiffDraft(original, edited)
	if len(changes) == 0 && edited.MainImage == nil && len(edited.Images) == 0 {
		return item.Item{}, shared.ErrNothingToUpdate
	}

	req := gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("items/%d/", id),
	}
	if edited.MainImage != nil || len(edited.Images) > 0 {
		builder := gateway.NewFormBuilder()
		for name, value := range changes {
			appendFormValue(builder, name, value)
		}
		if edited.MainImage != nil {
			builder.File("main_image", edited.MainImage.Filename, edited.MainImage.Data)
		}
		for _, upload := range edited.Images {
			builder.File("uploaded_images", upload.Filename, upload.Data)
		}
		form, err := builder.Build()
		if err != nil {
			return item.Item{}, err
		}
		req.Form = form
	} else {
		req.JSON = changes
	}

	var updated item.Item
	if _, err := s.gw.JSON(ctx, req, &updated); err != nil {
		return item.Item{}, err
	}
	s.invalidateLists(ctx)
	return updated, nil
}

// Publish moves a pending listing into the active state.
func (s *AuctionService) Publish(ctx context.Context, id int64) (item.Item, error) {
	var published item.Item
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("items/%d/publish/", id),
	}, &published); err != nil {
		return item.Item{}, err
	}
	s.invalidateLists(ctx)
	return published, nil
}

// Delete removes a listing.
func (s *AuctionService) Delete(ctx context.Context, id int64) error {
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("items/%d/", id),
	}, nil); err != nil {
		return err
	}
	s.invalidateLists(ctx)
	return nil
}

// Bids fetches the bids placed on a listing.
func (s *AuctionService) Bids(ctx context.Context, itemID int64) ([]item.Bid, error) {
	var bids []item.Bid
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("items/%d/bids/", itemID),
	}, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// PlaceBid submits a bid. Validation is the server's job; a rejected amount
// comes back as a structured field error ("amount: must be greater than
// current bid").
func (s *AuctionService) PlaceBid(ctx context.Context, itemID int64, amount string) (item.Bid, error) {
	var placed item.Bid
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("items/%d/bids/", itemID),
		JSON:   map[string]any{"amount": json.Number(amount)},
	}, &placed); err != nil {
		return item.Bid{}, err
	}
	s.logger.Info().Int64("item_id", itemID).Str("amount", amount).Msg("Bid placed")
	return placed, nil
}

// RateWinningPair rates the counterpart of a completed auction.
func (s *AuctionService) RateWinningPair(ctx context.Context, pairID int64, rating int) error {
	_, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("winning-pairs/%d/rate/", pairID),
		JSON:   map[string]int{"rating": rating},
	}, nil)
	return err
}

func (s *AuctionService) invalidateLists(ctx context.Context) {
	// Item pages are keyed by query string; dropping the category list is
	// cheap and page entries expire on their own TTL.
	s.cache.Invalidate(ctx, "categories")
}

// DiffDraft computes the minimal update payload between the original
// listing's edit buffer and the edited copy.
func DiffDraft(original, edited item.Draft) map[string]any {
	changes := map[string]any{}
	if edited.Name != original.Name {
		changes["name"] = edited.Name
	}
	if edited.Description != original.Description {
		changes["description"] = edited.Description
	}
	if edited.FirstBid != original.FirstBid {
		changes["first_bid"] = edited.FirstBid
	}
	if edited.BuyPrice != original.BuyPrice {
		changes["buy_price"] = edited.BuyPrice
	}
	if edited.Address != original.Address {
		changes["address"] = edited.Address
	}
	if edited.Longitude != original.Longitude {
		changes["longitude"] = edited.Longitude
	}
	if edited.Latitude != original.Latitude {
		changes["latitude"] = edited.Latitude
	}
	if edited.Country != original.Country {
		changes["country"] = edited.Country
	}
	if !edited.Ends.Equal(original.Ends) {
		changes["ends"] = edited.Ends.UTC().Format(time.RFC3339)
	}
	if !edited.Started.Equal(original.Started) && !edited.Started.IsZero() {
		changes["started"] = edited.Started.UTC().Format(time.RFC3339)
	}
	if !equalStrings(edited.Categories, original.Categories) {
		changes["categories"] = edited.Categories
	}
	return changes
}

func buildItemForm(draft item.Draft) (*gateway.Form, error) {
	builder := gateway.NewFormBuilder().
		Field("name", draft.Name).
		Field("description", draft.Description).
		Field("first_bid", draft.FirstBid).
		Field("address", draft.Address).
		Field("country", draft.Country).
		Field("ends", draft.Ends.UTC().Format(time.RFC3339))
	if draft.BuyPrice != "" {
		builder.Field("buy_price", draft.BuyPrice)
	}
	if draft.Longitude != "" && draft.Latitude != "" {
		builder.Field("longitude", draft.Longitude)
		builder.Field("latitude", draft.Latitude)
	}
	if draft.PublishImmediately {
		builder.Field("publish_immediately", "true")
	} else if !draft.Started.IsZero() {
		builder.Field("started", draft.Started.UTC().Format(time.RFC3339))
	}
	for _, category := range draft.Categories {
		builder.Field("categories", category)
	}
	if draft.MainImage != nil {
		builder.File("main_image", draft.MainImage.Filename, draft.MainImage.Data)
	}
	for _, upload := range draft.Images {
		builder.File("uploaded_images", upload.Filename, upload.Data)
	}
	return builder.Build()
}

func appendFormValue(builder *gateway.FormBuilder, name string, value any) {
	switch v := value.(type) {
	case string:
		builder.Field(name, v)
	case []string:
		for _, entry := range v {
			builder.Field(name, entry)
		}
	default:
		builder.Field(name, fmt.Sprint(v))
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
