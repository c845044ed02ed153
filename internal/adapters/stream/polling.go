package stream

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/ports/outbound"
)

// FetchFunc fetches one thread's message list. The bool result is false
// when the payload had an unexpected shape and was coerced to empty.
type FetchFunc func(ctx context.Context, pairID int64) ([]message.Message, bool, error)

// PollingStream is the default MessageStream implementation: it keeps an
// open thread approximately current by re-fetching it on a fixed interval.
// A tick does not cancel an in-flight predecessor; the consumer's staleness
// guard makes overlapping results order-independent.
type PollingStream struct {
	fetch    FetchFunc
	interval time.Duration
	logger   zerolog.Logger
}

type PollingStreamParams struct {
	Fetch    FetchFunc
	Interval time.Duration
	Logger   zerolog.Logger
}

func NewPollingStream(params PollingStreamParams) *PollingStream {
	interval := params.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &PollingStream{
		fetch:    params.Fetch,
		interval: interval,
		logger:   params.Logger.With().Str("component", "polling_stream").Logger(),
	}
}

// Subscribe polls the thread until ctx is done, delivering every fetched
// snapshot. Fetch failures skip the tick; the next one retries.
func (p *PollingStream) Subscribe(ctx context.Context, pairID int64, clientID string, updates chan<- outbound.ThreadUpdate) error {
	go p.pollLoop(ctx, pairID, clientID, updates)
	return nil
}

func (p *PollingStream) pollLoop(ctx context.Context, pairID int64, clientID string, updates chan<- outbound.ThreadUpdate) {
	logger := p.logger.With().Int64("winning_pair", pairID).Str("client_id", clientID).Logger()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	poll := func() {
		msgs, ok, err := p.fetch(ctx, pairID)
		if err != nil {
			logger.Debug().Err(err).Msg("Thread poll failed")
			return
		}
		select {
		case updates <- outbound.ThreadUpdate{PairID: pairID, Messages: msgs, OK: ok}:
		case <-ctx.Done():
		}
	}

	poll()
	for {
		select {
		case <-ticker.C:
			poll()
		case <-ctx.Done():
			logger.Debug().Msg("Thread poll stopped")
			return
		}
	}
}
