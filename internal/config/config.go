package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Logging  LoggingConfig
	Database DatabaseConfig
	Twitter  TwitterConfig
	OpenAI   OpenAIConfig
	Agent    AgentConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// DatabaseConfig holds connection parameters for the durable store.
type DatabaseConfig struct {
	URL                string
	MaxConnections     int
	MaxIdleConnections int
	ConnMaxLifetime    time.Duration
}

// TwitterConfig holds credentials for the platform client.
type TwitterConfig struct {
	APIKey            string
	APISecret         string
	AccessToken       string
	AccessTokenSecret string
	BearerToken       string
	UserID            string
}

// Configured reports whether enough credentials are present to post.
func (t TwitterConfig) Configured() bool {
	return t.APIKey != "" && t.APISecret != "" && t.AccessToken != "" && t.AccessTokenSecret != ""
}

// OpenAIConfig holds parameters for the text-generation capability.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// AgentConfig governs the autonomous behaviors and their cadences.
type AgentConfig struct {
	AutoTweet  bool
	AutoReply  bool
	AutoEngage bool

	ActiveHoursStart int
	ActiveHoursEnd   int
	DailyTweetCap    int

	MentionsInterval time.Duration
	EngageInterval   time.Duration
	GenerateInterval time.Duration
	DrainInterval    time.Duration
	CleanupInterval  time.Duration

	ExecutorBatchSize int
	RetentionDays     int
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultMaxConnections     = 25
	defaultMaxIdleConnections = 5
	defaultConnMaxLifetime    = 5 * time.Minute

	defaultOpenAIModel       = "gpt-4o"
	defaultOpenAITemperature = 0.7
	defaultOpenAIMaxTokens   = 1000
	defaultOpenAITimeout     = 120 * time.Second

	defaultActiveHoursStart = 8
	defaultActiveHoursEnd   = 23
	defaultDailyTweetCap    = 10

	defaultMentionsInterval = 5 * time.Minute
	defaultEngageInterval   = 15 * time.Minute
	defaultGenerateInterval = 4 * time.Hour
	defaultDrainInterval    = 1 * time.Minute
	defaultCleanupInterval  = 24 * time.Hour

	defaultExecutorBatchSize = 10
	defaultRetentionDays     = 30
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud platforms set PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Database: DatabaseConfig{
			URL:                os.Getenv("DATABASE_URL"),
			MaxConnections:     defaultMaxConnections,
			MaxIdleConnections: defaultMaxIdleConnections,
			ConnMaxLifetime:    defaultConnMaxLifetime,
		},
		Twitter: TwitterConfig{
			APIKey:            os.Getenv("TWITTER_API_KEY"),
			APISecret:         os.Getenv("TWITTER_API_SECRET"),
			AccessToken:       os.Getenv("TWITTER_ACCESS_TOKEN"),
			AccessTokenSecret: os.Getenv("TWITTER_ACCESS_TOKEN_SECRET"),
			BearerToken:       os.Getenv("TWITTER_BEARER_TOKEN"),
			UserID:            os.Getenv("TWITTER_USER_ID"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      os.Getenv("OPENAI_API_KEY"),
			Model:       getEnv("OPENAI_MODEL", defaultOpenAIModel),
			Temperature: defaultOpenAITemperature,
			MaxTokens:   defaultOpenAIMaxTokens,
			Timeout:     defaultOpenAITimeout,
		},
		Agent: AgentConfig{
			AutoTweet:         getBool("AGENT_AUTO_TWEET", true),
			AutoReply:         getBool("AGENT_AUTO_REPLY", true),
			AutoEngage:        getBool("AGENT_AUTO_ENGAGE", true),
			ActiveHoursStart:  defaultActiveHoursStart,
			ActiveHoursEnd:    defaultActiveHoursEnd,
			DailyTweetCap:     defaultDailyTweetCap,
			MentionsInterval:  defaultMentionsInterval,
			EngageInterval:    defaultEngageInterval,
			GenerateInterval:  defaultGenerateInterval,
			DrainInterval:     defaultDrainInterval,
			CleanupInterval:   defaultCleanupInterval,
			ExecutorBatchSize: defaultExecutorBatchSize,
			RetentionDays:     defaultRetentionDays,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("OPENAI_TEMPERATURE"); v != "" {
		temp, err := strconv.ParseFloat(v, 32)
		if err != nil || temp < 0 || temp > 2 {
			return Config{}, fmt.Errorf("invalid OPENAI_TEMPERATURE: must be a float in [0, 2]")
		}
		cfg.OpenAI.Temperature = float32(temp)
	}

	if v := os.Getenv("AGENT_ACTIVE_HOURS_START"); v != "" {
		h, err := parseHour(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_ACTIVE_HOURS_START: %w", err)
		}
		cfg.Agent.ActiveHoursStart = h
	}

	if v := os.Getenv("AGENT_ACTIVE_HOURS_END"); v != "" {
		h, err := parseHour(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid AGENT_ACTIVE_HOURS_END: %w", err)
		}
		cfg.Agent.ActiveHoursEnd = h
	}

	if cfg.Agent.ActiveHoursStart >= cfg.Agent.ActiveHoursEnd {
		return Config{}, fmt.Errorf("invalid active hours window: start (%d) must be before end (%d)",
			cfg.Agent.ActiveHoursStart, cfg.Agent.ActiveHoursEnd)
	}

	if v := os.Getenv("AGENT_DAILY_TWEET_CAP"); v != "" {
		cap, err := strconv.Atoi(v)
		if err != nil || cap < 0 {
			return Config{}, fmt.Errorf("invalid AGENT_DAILY_TWEET_CAP: must be a non-negative integer")
		}
		cfg.Agent.DailyTweetCap = cap
	}

	if v := os.Getenv("AGENT_EXECUTOR_BATCH_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid AGENT_EXECUTOR_BATCH_SIZE: must be a positive integer")
		}
		cfg.Agent.ExecutorBatchSize = n
	}

	if v := os.Getenv("AGENT_RETENTION_DAYS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("invalid AGENT_RETENTION_DAYS: must be a positive integer")
		}
		cfg.Agent.RetentionDays = n
	}

	for _, iv := range []struct {
		env    string
		target *time.Duration
	}{
		{"AGENT_MENTIONS_INTERVAL", &cfg.Agent.MentionsInterval},
		{"AGENT_ENGAGE_INTERVAL", &cfg.Agent.EngageInterval},
		{"AGENT_GENERATE_INTERVAL", &cfg.Agent.GenerateInterval},
		{"AGENT_DRAIN_INTERVAL", &cfg.Agent.DrainInterval},
		{"AGENT_CLEANUP_INTERVAL", &cfg.Agent.CleanupInterval},
	} {
		if v := os.Getenv(iv.env); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				return Config{}, fmt.Errorf("invalid %s: must be a positive duration", iv.env)
			}
			*iv.target = d
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseHour(raw string) (int, error) {
	h, err := strconv.Atoi(raw)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("must be an integer in [0, 24]")
	}
	return h, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "on":
		return true
	case "false", "0", "off":
		return false
	default:
		return fallback
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
