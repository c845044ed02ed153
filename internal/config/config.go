package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Configuration constants
const (
	// Backend API Configuration
	APIBaseURL = "API_BASE_URL"
	APITimeout = "API_TIMEOUT"

	// Credentials Configuration
	Username       = "USERNAME"
	Password       = "PASSWORD"
	TokenStorePath = "TOKEN_STORE_PATH"

	// Polling Configuration
	ConversationPollInterval = "CONVERSATION_POLL_INTERVAL"
	ChatPollInterval         = "CHAT_POLL_INTERVAL"
	WatchdogInterval         = "WATCHDOG_INTERVAL"

	// Messaging stream Configuration
	StreamMode        = "STREAM_MODE"
	StreamWSEndpoint  = "STREAM_WS_ENDPOINT"
	FollowWinningPair = "FOLLOW_WINNING_PAIR"
	StreamModePoll    = "poll"
	StreamModeWS      = "websocket"

	// Redis cache Configuration
	RedisAddr     = "REDIS_ADDR"
	RedisPassword = "REDIS_PASSWORD"
	RedisDB       = "REDIS_DB"
	CacheTTL      = "CACHE_TTL"

	// Logging Configuration
	LogLevel  = "LOG_LEVEL"
	LogFormat = "LOG_FORMAT"

	// Aggregator worker pool sizing
	MetaFetchMaxWorkers  = 8
	MetaFetchMaxCapacity = 64
)

// Config holds all application configuration
type Config struct {
	API     APIConfig
	Auth    AuthConfig
	Polling PollingConfig
	Stream  StreamConfig
	Redis   RedisConfig
	Logging LoggingConfig
}

// APIConfig holds backend API configuration
type APIConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AuthConfig holds credential and session storage configuration
type AuthConfig struct {
	Username       string
	Password       string
	TokenStorePath string
}

// PollingConfig holds the refresh cadences
type PollingConfig struct {
	ConversationInterval time.Duration
	ChatInterval         time.Duration
	WatchdogInterval     time.Duration
}

// StreamConfig selects the message stream implementation. FollowPairID,
// when set, makes the watcher open that winning pair's chat and log its
// messages live.
type StreamConfig struct {
	Mode         string
	WSEndpoint   string
	FollowPairID int64
}

// RedisConfig holds Redis cache configuration; an empty Addr disables the
// cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables and .envrc file
func LoadConfig() (*Config, error) {
	viper.SetConfigName(".envrc")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("../config")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, environment variables carry everything
	}

	config := &Config{
		API: APIConfig{
			BaseURL: viper.GetString(APIBaseURL),
			Timeout: viper.GetDuration(APITimeout),
		},
		Auth: AuthConfig{
			Username:       viper.GetString(Username),
			Password:       viper.GetString(Password),
			TokenStorePath: viper.GetString(TokenStorePath),
		},
		Polling: PollingConfig{
			ConversationInterval: viper.GetDuration(ConversationPollInterval),
			ChatInterval:         viper.GetDuration(ChatPollInterval),
			WatchdogInterval:     viper.GetDuration(WatchdogInterval),
		},
		Stream: StreamConfig{
			Mode:         viper.GetString(StreamMode),
			WSEndpoint:   viper.GetString(StreamWSEndpoint),
			FollowPairID: viper.GetInt64(FollowWinningPair),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString(RedisAddr),
			Password: viper.GetString(RedisPassword),
			DB:       viper.GetInt(RedisDB),
			TTL:      viper.GetDuration(CacheTTL),
		},
		Logging: LoggingConfig{
			Level:  viper.GetString(LogLevel),
			Format: viper.GetString(LogFormat),
		},
	}

	return config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	// Backend API defaults
	viper.SetDefault(APIBaseURL, "http://localhost:8000/api/")
	viper.SetDefault(APITimeout, "30s")

	// Session storage defaults
	viper.SetDefault(TokenStorePath, ".marketplace/session.json")

	// Polling defaults match the reference cadences: conversations every
	// 20s, open chats every 5s, session-loss watchdog every second.
	viper.SetDefault(ConversationPollInterval, "20s")
	viper.SetDefault(ChatPollInterval, "5s")
	viper.SetDefault(WatchdogInterval, "1s")

	// Stream defaults
	viper.SetDefault(StreamMode, StreamModePoll)
	viper.SetDefault(StreamWSEndpoint, "")
	viper.SetDefault(FollowWinningPair, 0)

	// Redis defaults (empty addr leaves the cache disabled)
	viper.SetDefault(RedisAddr, "")
	viper.SetDefault(RedisPassword, "")
	viper.SetDefault(RedisDB, 0)
	viper.SetDefault(CacheTTL, "60s")

	// Logging defaults
	viper.SetDefault(LogLevel, "info")
	viper.SetDefault(LogFormat, "json")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("API base URL is required")
	}

	if c.Auth.TokenStorePath == "" {
		return fmt.Errorf("token store path is required")
	}

	if c.Stream.Mode != StreamModePoll && c.Stream.Mode != StreamModeWS {
		return fmt.Errorf("stream mode must be %q or %q", StreamModePoll, StreamModeWS)
	}

	if c.Stream.Mode == StreamModeWS && c.Stream.WSEndpoint == "" {
		return fmt.Errorf("websocket stream mode requires an endpoint")
	}

	return nil
}
