package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/alitto/pond"
	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/config"
	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/outbound"
)

const snippetLimit = 80

// MessagingService turns winning-pair records plus per-thread message
// fetches into the derived conversation view: unread counts, previews and
// an aggregate badge total.
type MessagingService struct {
	gw     *gateway.Gateway
	store  outbound.TokenStore
	pool   *pond.WorkerPool
	logger zerolog.Logger
}

type MessagingServiceParams struct {
	Gateway *gateway.Gateway
	Store   outbound.TokenStore
	Logger  zerolog.Logger
}

// NewMessagingService creates a new messaging service
func NewMessagingService(params MessagingServiceParams) *MessagingService {
	pool := pond.New(
		config.MetaFetchMaxWorkers,
		config.MetaFetchMaxCapacity,
		pond.Strategy(pond.Balanced()),
	)
	return &MessagingService{
		gw:     params.Gateway,
		store:  params.Store,
		pool:   pool,
		logger: params.Logger.With().Str("component", "messaging_service").Logger(),
	}
}

// Close stops the metadata worker pool.
func (s *MessagingService) Close() {
	s.pool.Stop()
}

// WinningPairs fetches the authenticated user's winning-pair records.
func (s *MessagingService) WinningPairs(ctx context.Context) ([]message.WinningPair, error) {
	var pairs []message.WinningPair
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "winning-pairs/",
	}, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Conversations derives the conversation list for the current user: one
// conversation per winning pair the user participates in, paired against
// the other side. Records addressed to neither side are skipped.
func (s *MessagingService) Conversations(ctx context.Context) ([]message.Conversation, error) {
	pairs, err := s.WinningPairs(ctx)
	if err != nil {
		return nil, err
	}
	user := s.store.Session().User

	convs := make([]message.Conversation, 0, len(pairs))
	for _, wp := range pairs {
		if conv, ok := message.Derive(user, wp); ok {
			convs = append(convs, conv)
		}
	}
	return convs, nil
}

// FetchThread fetches one winning pair's message list. The payload is
// normalized: a bare list or an object with a results list both work;
// anything else is treated as empty with ok=false.
func (s *MessagingService) FetchThread(ctx context.Context, pairID int64) ([]message.Message, bool, error) {
	query := url.Values{}
	query.Set("winning_pair", strconv.FormatInt(pairID, 10))

	resp, err := s.gw.Do(ctx, gateway.Request{
		Method: http.MethodGet,
		Path:   "messages/",
		Query:  query,
	})
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, fmt.Errorf("failed to load messages (%d)", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, false, nil
	}
	msgs, ok := normalizeMessages(raw)
	return msgs, ok, nil
}

// normalizeMessages accepts either a bare list or an object with a
// list-valued results field; any other shape yields an empty list and
// ok=false so callers can show an unexpected-payload indicator.
func normalizeMessages(raw json.RawMessage) ([]message.Message, bool) {
	var list []message.Message
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}
	var wrapped struct {
		Results []message.Message `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Results != nil {
		return wrapped.Results, true
	}
	return []message.Message{}, false
}

// RefreshMeta fetches every conversation's thread concurrently and derives
// per-thread metadata. A failed thread is omitted from the map (absent, not
// zero) and contributes nothing to the total; the aggregation never aborts
// as a whole.
func (s *MessagingService) RefreshMeta(ctx context.Context, convs []message.Conversation) (map[int64]message.Meta, int) {
	var mu sync.Mutex
	metas := make(map[int64]message.Meta, len(convs))

	group := s.pool.Group()
	for _, conv := range convs {
		conv := conv
		group.Submit(func() {
			msgs, ok, err := s.FetchThread(ctx, conv.WinningPairID)
			if err != nil || !ok {
				s.logger.Debug().
					Err(err).
					Int64("winning_pair", conv.WinningPairID).
					Msg("Conversation meta fetch failed")
				return
			}
			meta := deriveMeta(conv.MeID, msgs)
			mu.Lock()
			metas[conv.WinningPairID] = meta
			mu.Unlock()
		})
	}
	group.Wait()

	total := 0
	for _, meta := range metas {
		total += meta.UnreadCount
	}
	return metas, total
}

// deriveMeta computes unread count and preview from a thread's messages,
// which arrive in chronological order.
func deriveMeta(meID int64, msgs []message.Message) message.Meta {
	meta := message.Meta{}
	for _, m := range msgs {
		if m.UnreadBy(meID) {
			meta.UnreadCount++
		}
	}
	if len(msgs) > 0 {
		last := msgs[len(msgs)-1]
		meta.LastMessage = Snippet(last.Content)
		meta.LastMessageAt = last.SentAt
	}
	return meta
}

// Snippet truncates a preview to 77 characters plus an ellipsis when the
// content exceeds 80; shorter content passes through unchanged.
func Snippet(content string) string {
	runes := []rune(content)
	if len(runes) <= snippetLimit {
		return content
	}
	return string(runes[:77]) + "..."
}

// Send posts a message to the conversation's thread. On success the
// server's returned saved object is what callers append; on failure nothing
// is appended.
func (s *MessagingService) Send(ctx context.Context, conv message.Conversation, content string) (message.Message, error) {
	if content == "" {
		return message.Message{}, shared.ErrEmptyMessage
	}
	payload := map[string]any{
		"winning_pair": conv.WinningPairID,
		"sender":       conv.MeID,
		"recipient":    conv.OtherUserID,
		"content":      content,
	}

	var saved message.Message
	if _, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodPost,
		Path:   "messages/",
		JSON:   payload,
	}, &saved); err != nil {
		return message.Message{}, err
	}
	return saved, nil
}

// MarkRead issues one request per unread message addressed to the user.
// Best-effort: failures are logged and ignored, never retried.
func (s *MessagingService) MarkRead(ctx context.Context, meID int64, msgs []message.Message) {
	for _, m := range msgs {
		if !m.UnreadBy(meID) {
			continue
		}
		if _, err := s.gw.JSON(ctx, gateway.Request{
			Method: http.MethodGet,
			Path:   fmt.Sprintf("messages/%d/", m.ID),
		}, nil); err != nil {
			s.logger.Debug().Err(err).Int64("message_id", m.ID).Msg("Mark-read failed")
		}
	}
}

// DeleteConversation removes a winning pair's thread from the user's view.
func (s *MessagingService) DeleteConversation(ctx context.Context, pairID int64) error {
	_, err := s.gw.JSON(ctx, gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("winning-pairs/%d/", pairID),
	}, nil)
	return err
}
