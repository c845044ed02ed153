package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"troffee-marketplace-client/internal/adapters/cache"
	"troffee-marketplace-client/internal/adapters/gateway"
	"troffee-marketplace-client/internal/adapters/stream"
	"troffee-marketplace-client/internal/adapters/tokenstore"
	"troffee-marketplace-client/internal/app"
	"troffee-marketplace-client/internal/config"
	"troffee-marketplace-client/internal/ports/outbound"
)

func main() {

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	initLogging(cfg)

	log.Info().Msg("Starting marketplace watcher...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Open the session store
	store, err := tokenstore.New(tokenstore.Params{
		Path:   cfg.Auth.TokenStorePath,
		Logger: log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open token store")
	}
	log.Info().Str("path", cfg.Auth.TokenStorePath).Msg("Token store ready")

	// Build the authenticated request gateway
	jar, _ := cookiejar.New(nil)
	gw := gateway.New(gateway.Params{
		HTTPClient: &http.Client{Timeout: cfg.API.Timeout, Jar: jar},
		BaseURL:    cfg.API.BaseURL,
		Store:      store,
		Logger:     log.Logger,
	})
	log.Info().Str("base_url", cfg.API.BaseURL).Msg("Request gateway initialized")

	// Optional Redis cache for client working copies
	var listingCache outbound.Cache = cache.Noop{}
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cache.RedisCacheParams{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Logger:   log.Logger,
		})
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, caching disabled")
		} else {
			listingCache = redisCache
			defer redisCache.Close()
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis cache connected")
		}
	}

	// Create client services
	accounts := app.NewAccountService(app.AccountServiceParams{
		Gateway: gw,
		Store:   store,
		Logger:  log.Logger,
	})
	auctions := app.NewAuctionService(app.AuctionServiceParams{
		Gateway:  gw,
		Cache:    listingCache,
		CacheTTL: cfg.Redis.TTL,
		Logger:   log.Logger,
	})
	messaging := app.NewMessagingService(app.MessagingServiceParams{
		Gateway: gw,
		Store:   store,
		Logger:  log.Logger,
	})
	defer messaging.Close()

	log.Info().Msg("Client services initialized")

	// Reuse a stored session when it is still valid, otherwise log in
	if store.Session().Authenticated() {
		if _, err := accounts.Profile(ctx); err != nil {
			log.Warn().Err(err).Msg("Stored session rejected, logging in again")
			store.Clear()
		}
	}
	if !store.Session().Authenticated() {
		if cfg.Auth.Username == "" || cfg.Auth.Password == "" {
			log.Fatal().Msg("No stored session and no credentials configured")
		}
		if _, err := accounts.Login(ctx, cfg.Auth.Username, cfg.Auth.Password); err != nil {
			log.Fatal().Err(err).Msg("Login failed")
		}
	}

	user := store.Session().User
	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("Authenticated")

	if categories, err := auctions.Categories(ctx); err == nil {
		log.Info().Int("count", len(categories)).Msg("Categories loaded")
	}

	// Start the conversation watcher
	watcher := app.NewConversationWatcher(app.ConversationWatcherParams{
		Messaging: messaging,
		Store:     store,
		Interval:  cfg.Polling.ConversationInterval,
		Logger:    log.Logger,
	})
	watcher.Start()
	log.Info().Msg("Conversation watcher started")

	// Optionally follow one conversation's chat live
	if cfg.Stream.FollowPairID > 0 {
		chat, err := followConversation(ctx, cfg, store, messaging)
		if err != nil {
			log.Warn().Err(err).Int64("winning_pair", cfg.Stream.FollowPairID).Msg("Chat follow unavailable")
		} else {
			defer chat.Close()
			log.Info().Int64("winning_pair", cfg.Stream.FollowPairID).Str("mode", cfg.Stream.Mode).Msg("Following chat")
		}
	}

	go func() {
		for update := range watcher.Updates() {
			log.Info().
				Int("unread_total", update.UnreadTotal).
				Int("conversations", len(update.Conversations)).
				Msg("Unread state changed")
			for _, conv := range update.Conversations {
				if conv.Meta == nil || conv.Meta.UnreadCount == 0 {
					continue
				}
				log.Info().
					Str("conversation", conv.ID).
					Str("from", conv.OtherUserName).
					Int("unread", conv.Meta.UnreadCount).
					Str("preview", conv.Meta.LastMessage).
					Msg("Unread conversation")
			}
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case <-ctx.Done():
		log.Info().Msg("Context cancelled")
	}

	// Graceful shutdown
	log.Info().Msg("Starting graceful shutdown...")

	done := make(chan struct{})
	go func() {
		watcher.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("Shutdown timed out")
	}

	log.Info().Msg("Graceful shutdown completed")
}

// buildStream picks the configured MessageStream implementation: fixed
// interval polling by default, a websocket feed when configured.
func buildStream(cfg *config.Config, store *tokenstore.FileStore, messaging *app.MessagingService) outbound.MessageStream {
	if cfg.Stream.Mode == config.StreamModeWS {
		return stream.NewWebSocketStream(stream.WebSocketStreamParams{
			Endpoint: cfg.Stream.WSEndpoint,
			Token:    store.Access,
			Logger:   log.Logger,
		})
	}
	return stream.NewPollingStream(stream.PollingStreamParams{
		Fetch:    messaging.FetchThread,
		Interval: cfg.Polling.ChatInterval,
		Logger:   log.Logger,
	})
}

// followConversation opens the configured winning pair's chat and logs its
// messages as they arrive.
func followConversation(ctx context.Context, cfg *config.Config, store *tokenstore.FileStore, messaging *app.MessagingService) (*app.ChatSession, error) {
	convs, err := messaging.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		if conv.WinningPairID != cfg.Stream.FollowPairID {
			continue
		}
		chat := app.NewChatSession(app.ChatSessionParams{
			Conversation:     conv,
			Messaging:        messaging,
			Stream:           buildStream(cfg, store, messaging),
			Store:            store,
			WatchdogInterval: cfg.Polling.WatchdogInterval,
			Logger:           log.Logger,
		})
		if err := chat.Open(ctx); err != nil {
			return nil, err
		}
		go logThread(ctx, chat)
		return chat, nil
	}
	return nil, fmt.Errorf("no conversation for winning pair %d", cfg.Stream.FollowPairID)
}

func logThread(ctx context.Context, chat *app.ChatSession) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	seen := 0
	for {
		select {
		case <-ticker.C:
			msgs := chat.Messages()
			if len(msgs) < seen {
				seen = 0
			}
			for ; seen < len(msgs); seen++ {
				m := msgs[seen]
				log.Info().
					Int64("message_id", m.ID).
					Int64("from", m.Sender.ID).
					Str("content", m.Content).
					Msg("Chat message")
			}
		case <-chat.Closed():
			log.Info().Msg("Chat closed")
			return
		case <-ctx.Done():
			return
		}
	}
}

func initLogging(cfg *config.Config) {
	// Set log level
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// Set log format
	if cfg.Logging.Format == "json" {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.DefaultContextLogger = &log.Logger
}
