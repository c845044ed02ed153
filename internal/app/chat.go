package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/domain/shared"
	"troffee-marketplace-client/internal/ports/outbound"
)

// ChatSession is one open conversation thread kept approximately current
// without a persistent connection. It owns a subscription on the message
// stream (polling by default), a staleness guard so overlapping results
// apply last-requester-wins, and a session-loss watchdog that closes the
// view when the access token disappears.
type ChatSession struct {
	conv      message.Conversation
	messaging *MessagingService
	stream    outbound.MessageStream
	store     outbound.TokenStore
	watchdog  time.Duration
	logger    zerolog.Logger

	cancel context.CancelFunc
	closed chan struct{}

	mu                sync.Mutex
	msgs              []message.Message
	unexpectedPayload bool
	stopped           bool

	// seq is the monotonically increasing request counter: a result is
	// applied only if no newer request was issued after it.
	seq atomic.Uint64
}

type ChatSessionParams struct {
	Conversation message.Conversation
	Messaging    *MessagingService
	Stream       outbound.MessageStream
	Store        outbound.TokenStore
	// WatchdogInterval is the token-presence check cadence; defaults to 1s.
	WatchdogInterval time.Duration
	Logger           zerolog.Logger
}

// NewChatSession creates a chat session for one conversation.
func NewChatSession(params ChatSessionParams) *ChatSession {
	watchdog := params.WatchdogInterval
	if watchdog <= 0 {
		watchdog = time.Second
	}
	return &ChatSession{
		conv:      params.Conversation,
		messaging: params.Messaging,
		stream:    params.Stream,
		store:     params.Store,
		watchdog:  watchdog,
		closed:    make(chan struct{}),
		logger: params.Logger.With().
			Str("component", "chat_session").
			Int64("winning_pair", params.Conversation.WinningPairID).
			Logger(),
	}
}

// Open loads the thread once, marks incoming unread messages read, and
// starts the stream subscription plus the session-loss watchdog.
func (c *ChatSession) Open(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	seq := c.seq.Add(1)
	msgs, ok, err := c.messaging.FetchThread(runCtx, c.conv.WinningPairID)
	if err != nil {
		cancel()
		return err
	}
	c.apply(runCtx, seq, msgs, ok)

	updates := make(chan outbound.ThreadUpdate, 1)
	if err := c.stream.Subscribe(runCtx, c.conv.WinningPairID, uuid.New().String(), updates); err != nil {
		cancel()
		return err
	}

	go c.consumeUpdates(runCtx, updates)
	go c.watchSession(runCtx)
	return nil
}

func (c *ChatSession) consumeUpdates(ctx context.Context, updates <-chan outbound.ThreadUpdate) {
	for {
		select {
		case update := <-updates:
			seq := c.seq.Add(1)
			c.apply(ctx, seq, update.Messages, update.OK)
		case <-ctx.Done():
			return
		}
	}
}

// apply replaces local state only when the incoming snapshot differs from
// the displayed one (last message id or length changed), the result is not
// stale, and the session is still open.
func (c *ChatSession) apply(ctx context.Context, seq uint64, msgs []message.Message, ok bool) {
	if seq != c.seq.Load() {
		// A newer request was issued while this one was in flight.
		return
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.unexpectedPayload = !ok

	if !threadChanged(c.msgs, msgs) {
		c.mu.Unlock()
		return
	}
	c.msgs = msgs
	c.mu.Unlock()

	c.messaging.MarkRead(ctx, c.conv.MeID, msgs)
}

func threadChanged(current, incoming []message.Message) bool {
	if len(current) != len(incoming) {
		return true
	}
	if len(current) == 0 {
		return false
	}
	return current[len(current)-1].ID != incoming[len(incoming)-1].ID
}

// watchSession closes the chat when the access token disappears from
// storage: a store change notification and a fixed-interval check both
// feed it, so the close happens within at most one watchdog interval.
func (c *ChatSession) watchSession(ctx context.Context) {
	changes := c.store.Watch(ctx)
	ticker := time.NewTicker(c.watchdog)
	defer ticker.Stop()

	for {
		select {
		case change, open := <-changes:
			if !open {
				return
			}
			if change.Type == outbound.ChangeCleared {
				c.logger.Info().Msg("Session cleared, closing chat")
				c.Close()
				return
			}
		case <-ticker.C:
			if c.store.Access() == "" {
				c.logger.Info().Msg("Access token gone, closing chat")
				c.Close()
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Send posts a message and appends the server's returned saved object to
// local state. On failure the error surfaces and nothing is appended.
func (c *ChatSession) Send(ctx context.Context, content string) (message.Message, error) {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped {
		return message.Message{}, shared.ErrConversationClosed
	}

	saved, err := c.messaging.Send(ctx, c.conv, content)
	if err != nil {
		return message.Message{}, err
	}

	c.mu.Lock()
	if !c.stopped {
		c.msgs = append(c.msgs, saved)
	}
	c.mu.Unlock()
	return saved, nil
}

// Messages returns a copy of the currently displayed thread.
func (c *ChatSession) Messages() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]message.Message(nil), c.msgs...)
}

// UnexpectedPayload reports whether the last fetched payload had a shape
// the client could not interpret and was coerced to an empty list.
func (c *ChatSession) UnexpectedPayload() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unexpectedPayload
}

// Closed is closed once the session has shut down.
func (c *ChatSession) Closed() <-chan struct{} {
	return c.closed
}

// Close stops polling and the watchdog. Cancellation is cooperative: an
// in-flight fetch is not aborted, its result is discarded on arrival.
func (c *ChatSession) Close() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	c.mu.Unlock()

	// Bump the counter so any in-flight result is stale on arrival.
	c.seq.Add(1)
	if c.cancel != nil {
		c.cancel()
	}
	close(c.closed)
	c.logger.Debug().Msg("Chat session closed")
}
