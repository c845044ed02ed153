package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"troffee-marketplace-client/internal/domain/message"
	"troffee-marketplace-client/internal/ports/outbound"
)

// serverMessage is the wire shape pushed by deployments that expose a
// websocket message feed.
type serverMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	eventThreadSnapshot = "thread.snapshot"
	eventMessageCreated = "message.created"
)

// WebSocketStream is the push implementation of the MessageStream port for
// backends that expose a message feed; the polling adapter remains the
// default. It maintains a local snapshot per subscription, seeded by the
// server's initial snapshot event and grown by created-message events.
type WebSocketStream struct {
	endpoint string
	token    func() string
	dialer   *websocket.Dialer
	logger   zerolog.Logger
}

type WebSocketStreamParams struct {
	// Endpoint is the ws:// or wss:// URL of the message feed.
	Endpoint string
	// Token supplies the current access token at (re)connect time, so a
	// refreshed token is picked up on reconnect.
	Token  func() string
	Logger zerolog.Logger
}

func NewWebSocketStream(params WebSocketStreamParams) *WebSocketStream {
	return &WebSocketStream{
		endpoint: params.Endpoint,
		token:    params.Token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: params.Logger.With().Str("component", "websocket_stream").Logger(),
	}
}

// Subscribe connects to the feed for one winning pair and delivers snapshot
// updates until ctx is done, reconnecting with a flat backoff on failure.
func (w *WebSocketStream) Subscribe(ctx context.Context, pairID int64, clientID string, updates chan<- outbound.ThreadUpdate) error {
	target, err := url.Parse(w.endpoint)
	if err != nil {
		return fmt.Errorf("invalid websocket endpoint: %w", err)
	}
	query := target.Query()
	query.Set("winning_pair", strconv.FormatInt(pairID, 10))
	query.Set("client_id", clientID)
	target.RawQuery = query.Encode()

	go w.readLoop(ctx, target.String(), pairID, updates)
	return nil
}

func (w *WebSocketStream) readLoop(ctx context.Context, target string, pairID int64, updates chan<- outbound.ThreadUpdate) {
	logger := w.logger.With().Int64("winning_pair", pairID).Logger()
	var snapshot []message.Message

	for ctx.Err() == nil {
		header := http.Header{}
		if w.token != nil {
			if access := w.token(); access != "" {
				header.Set("Authorization", "Bearer "+access)
			}
		}

		conn, _, err := w.dialer.DialContext(ctx, target, header)
		if err != nil {
			logger.Debug().Err(err).Msg("Websocket dial failed, retrying")
			select {
			case <-time.After(5 * time.Second):
				continue
			case <-ctx.Done():
				return
			}
		}

		w.consume(ctx, conn, &snapshot, pairID, updates, logger)
		conn.Close()
	}
}

func (w *WebSocketStream) consume(ctx context.Context, conn *websocket.Conn, snapshot *[]message.Message, pairID int64, updates chan<- outbound.ThreadUpdate, logger zerolog.Logger) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			logger.Debug().Err(err).Msg("Websocket read ended")
			return
		}

		switch msg.Type {
		case eventThreadSnapshot:
			var list []message.Message
			if err := json.Unmarshal(msg.Data, &list); err != nil {
				logger.Warn().Err(err).Msg("Unreadable thread snapshot")
				continue
			}
			*snapshot = list
		case eventMessageCreated:
			var created message.Message
			if err := json.Unmarshal(msg.Data, &created); err != nil {
				logger.Warn().Err(err).Msg("Unreadable message event")
				continue
			}
			*snapshot = append(*snapshot, created)
		default:
			continue
		}

		update := outbound.ThreadUpdate{
			PairID:   pairID,
			Messages: append([]message.Message(nil), *snapshot...),
			OK:       true,
		}
		select {
		case updates <- update:
		case <-ctx.Done():
			return
		}
	}
}
