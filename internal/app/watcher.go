package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/ports/inbound"
	"troffee-marketplace-client/internal/ports/outbound"
)

// ConversationWatcher keeps the derived conversation view current: one
// refresh when started (and whenever the conversation list changes), then a
// fixed-interval re-aggregation while the user stays authenticated with at
// least one conversation. The interval loop stops on logout or when the
// list becomes empty.
type ConversationWatcher struct {
	messaging *MessagingService
	store     outbound.TokenStore
	interval  time.Duration
	logger    zerolog.Logger

	updates chan inbound.ConversationUpdate
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu    sync.Mutex
	convs []message.Conversation
}

type ConversationWatcherParams struct {
	Messaging *MessagingService
	Store     outbound.TokenStore
	Interval  time.Duration
	Logger    zerolog.Logger
}

func NewConversationWatcher(params ConversationWatcherParams) *ConversationWatcher {
	interval := params.Interval
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &ConversationWatcher{
		messaging: params.Messaging,
		store:     params.Store,
		interval:  interval,
		logger:    params.Logger.With().Str("component", "conversation_watcher").Logger(),
		updates:   make(chan inbound.ConversationUpdate, 4),
	}
}

// Updates delivers each refreshed view. A slow consumer misses intermediate
// refreshes, never the latest pending one.
func (w *ConversationWatcher) Updates() <-chan inbound.ConversationUpdate {
	return w.updates
}

// Start begins the watcher loop
func (w *ConversationWatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.logger.Info().Dur("interval", w.interval).Msg("Starting conversation watcher")
	w.wg.Add(1)
	go w.watchLoop(ctx)
}

// Stop gracefully stops the watcher
func (w *ConversationWatcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	close(w.updates)
	w.logger.Info().Msg("Conversation watcher stopped")
}

func (w *ConversationWatcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.refresh(ctx)
	for {
		select {
		case <-ticker.C:
			if !w.store.Session().Authenticated() {
				w.logger.Debug().Msg("Not authenticated, skipping refresh")
				continue
			}
			w.mu.Lock()
			idle := len(w.convs) == 0
			w.mu.Unlock()
			if idle {
				// Re-derive the list so a first completed auction starts
				// the metadata polling.
				w.refreshConversations(ctx)
				continue
			}
			w.refreshMeta(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// refresh re-derives the conversation list and its metadata in one pass.
func (w *ConversationWatcher) refresh(ctx context.Context) {
	if !w.store.Session().Authenticated() {
		return
	}
	w.refreshConversations(ctx)
	w.refreshMeta(ctx)
}

func (w *ConversationWatcher) refreshConversations(ctx context.Context) {
	convs, err := w.messaging.Conversations(ctx)
	if err != nil {
		w.logger.Warn().Err(err).Msg("Failed to derive conversations")
		return
	}
	w.mu.Lock()
	w.convs = convs
	w.mu.Unlock()
}

func (w *ConversationWatcher) refreshMeta(ctx context.Context) {
	w.mu.Lock()
	convs := append([]message.Conversation(nil), w.convs...)
	w.mu.Unlock()
	if len(convs) == 0 {
		return
	}

	metas, total := w.messaging.RefreshMeta(ctx, convs)
	enriched := make([]message.Conversation, len(convs))
	for i, conv := range convs {
		if meta, ok := metas[conv.WinningPairID]; ok {
			conv.Meta = &meta
		}
		enriched[i] = conv
	}

	w.mu.Lock()
	w.convs = enriched
	w.mu.Unlock()

	update := inbound.ConversationUpdate{Conversations: enriched, UnreadTotal: total}
	select {
	case w.updates <- update:
	default:
		// Drop the oldest pending update so the latest always lands.
		select {
		case <-w.updates:
		default:
		}
		select {
		case w.updates <- update:
		default:
		}
	}
	w.logger.Debug().Int("unread_total", total).Int("conversations", len(enriched)).Msg("Conversation view refreshed")
}
