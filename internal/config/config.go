package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the desk agent and the relay.
type Config struct {
	App      AppConfig
	Desk     DeskConfig
	Relay    RelayConfig
	Tracker  TrackerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Sound    SoundConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// DeskConfig holds the timings of the presence/ticket desk.
type DeskConfig struct {
	EventsURL        string
	ReconnectBackoff time.Duration
	SettleDelay      time.Duration
	ToastLifetime    time.Duration
	FlashLifetime    time.Duration
	PollInterval     time.Duration
	TrackerTimeout   time.Duration
}

// RelayConfig holds webhook relay values.
type RelayConfig struct {
	Host         string
	Port         string
	HistorySize  int
	ReplaySize   int
	Keepalive    time.Duration
	ClientBuffer int
	RedisChannel string
}

// TrackerConfig points at the injected application config consumed by Resolver.
type TrackerConfig struct {
	ConfigFile string
}

// PostgresConfig holds DB connection values for the transition journal.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines desk session token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// SoundConfig configures the audio notification tiers.
type SoundConfig struct {
	File          string
	BufferCommand []string
	PlayCommand   []string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "presence-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "127.0.0.1"),
			Port:                  getEnv("APP_PORT", "8090"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Desk: DeskConfig{
			EventsURL:        getEnv("DESK_EVENTS_URL", "http://127.0.0.1:8080/events"),
			ReconnectBackoff: getEnvAsDuration("DESK_RECONNECT_BACKOFF", 5*time.Second),
			SettleDelay:      getEnvAsDuration("DESK_RETURN_SETTLE_DELAY", 5*time.Second),
			ToastLifetime:    getEnvAsDuration("DESK_TOAST_LIFETIME", 5*time.Second),
			FlashLifetime:    getEnvAsDuration("DESK_FLASH_LIFETIME", 1500*time.Millisecond),
			PollInterval:     getEnvAsDuration("DESK_POLL_INTERVAL", 0),
			TrackerTimeout:   getEnvAsDuration("TRACKER_TIMEOUT", 15*time.Second),
		},
		Relay: RelayConfig{
			Host:         getEnv("RELAY_HOST", "0.0.0.0"),
			Port:         getEnv("RELAY_PORT", "8080"),
			HistorySize:  getEnvAsInt("RELAY_HISTORY_SIZE", 100),
			ReplaySize:   getEnvAsInt("RELAY_REPLAY_SIZE", 20),
			Keepalive:    getEnvAsDuration("RELAY_KEEPALIVE", 5*time.Second),
			ClientBuffer: getEnvAsInt("RELAY_CLIENT_BUFFER", 64),
			RedisChannel: getEnv("RELAY_REDIS_CHANNEL", "presence-desk:webhooks"),
		},
		Tracker: TrackerConfig{
			ConfigFile: os.Getenv("APP_CONFIG_FILE"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 5)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Enabled:    getEnvAsBool("REDIS_ENABLED", false),
			Addr:       getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:   os.Getenv("REDIS_PASSWORD"),
			DB:         redisDB,
			SessionTTL: getEnvAsDuration("REDIS_SESSION_TTL", 12*time.Hour),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 720),
		},
		Sound: SoundConfig{
			File:          getEnv("SOUND_FILE", "assets/sounds/notification.wav"),
			BufferCommand: getEnvAsFields("SOUND_BUFFER_COMMAND", []string{"aplay", "-q", "-"}),
			PlayCommand:   getEnvAsFields("SOUND_PLAY_COMMAND", []string{"paplay"}),
		},
	}

	return cfg, nil
}

// Addr returns the desk HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Addr returns the relay HTTP bind address.
func (r RelayConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFields(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	fields := strings.Fields(val)
	if len(fields) == 0 {
		return fallback
	}
	return fields
}
