package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds live-pk-service configuration.
type Config struct {
	AppEnv   string // APP_ENV
	AppHost  string // APP_HOST
	HTTPPort string // APP_PORT or HTTP_PORT
	LogLevel string // LOG_LEVEL

	// Registry
	HeartbeatWindow time.Duration
	FallbackFile    string

	// PK
	PK struct {
		DefaultDuration time.Duration
		MinDuration     time.Duration
		MaxDuration     time.Duration
		InviteTTL       time.Duration
		ResultTTL       time.Duration
	}
	JanitorInterval time.Duration

	// WebSocket
	WSReadBufferSize  int
	WSWriteBufferSize int
	WSMaxMessageSize  int64
	WSSendBuffer      int

	// WebSocket URL returned in RegisterSession (e.g. wss://live.example.com)
	WSBaseURL string

	// Media credential signing
	Media struct {
		AppID     string
		AppSecret string
		TokenTTL  time.Duration
	}

	// External notification sinks; each one is enabled when its address is set.
	Notify struct {
		Timeout      time.Duration
		WebhookURL   string
		RedisAddr    string
		RedisPass    string
		RedisDB      int
		RedisChannel string
		AMQPURL      string
		AMQPQueue    string
		KafkaBrokers []string
		KafkaTopic   string
	}
}

// Load loads config from environment (.env if present).
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("../.env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "development")
	v.SetDefault("APP_HOST", "0.0.0.0")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("HEARTBEAT_WINDOW", "90s")
	v.SetDefault("PK_DEFAULT_DURATION", "180s")
	v.SetDefault("PK_MIN_DURATION", "30s")
	v.SetDefault("PK_MAX_DURATION", "3600s")
	v.SetDefault("PK_INVITE_TTL", "60s")
	v.SetDefault("PK_RESULT_TTL", "10m")
	v.SetDefault("JANITOR_INTERVAL", "1m")
	v.SetDefault("WS_READ_BUFFER_SIZE", 4096)
	v.SetDefault("WS_WRITE_BUFFER_SIZE", 4096)
	v.SetDefault("WS_MAX_MESSAGE_SIZE", 65536)
	v.SetDefault("WS_SEND_BUFFER", 256)
	v.SetDefault("MEDIA_TOKEN_TTL", "3600s")
	v.SetDefault("NOTIFY_TIMEOUT", "3s")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("NOTIFY_REDIS_CHANNEL", "live-pk.events")
	v.SetDefault("NOTIFY_AMQP_QUEUE", "live-pk.events")
	v.SetDefault("NOTIFY_KAFKA_TOPIC", "live-pk-events")

	cfg := &Config{
		AppEnv:            v.GetString("APP_ENV"),
		AppHost:           v.GetString("APP_HOST"),
		HTTPPort:          firstEnv(v, "APP_PORT", "HTTP_PORT", "8090"),
		LogLevel:          v.GetString("LOG_LEVEL"),
		HeartbeatWindow:   v.GetDuration("HEARTBEAT_WINDOW"),
		FallbackFile:      v.GetString("FALLBACK_FILE"),
		JanitorInterval:   v.GetDuration("JANITOR_INTERVAL"),
		WSReadBufferSize:  v.GetInt("WS_READ_BUFFER_SIZE"),
		WSWriteBufferSize: v.GetInt("WS_WRITE_BUFFER_SIZE"),
		WSMaxMessageSize:  v.GetInt64("WS_MAX_MESSAGE_SIZE"),
		WSSendBuffer:      v.GetInt("WS_SEND_BUFFER"),
		WSBaseURL:         v.GetString("WS_BASE_URL"),
	}
	cfg.PK.DefaultDuration = v.GetDuration("PK_DEFAULT_DURATION")
	cfg.PK.MinDuration = v.GetDuration("PK_MIN_DURATION")
	cfg.PK.MaxDuration = v.GetDuration("PK_MAX_DURATION")
	cfg.PK.InviteTTL = v.GetDuration("PK_INVITE_TTL")
	cfg.PK.ResultTTL = v.GetDuration("PK_RESULT_TTL")

	cfg.Media.AppID = v.GetString("MEDIA_APP_ID")
	cfg.Media.AppSecret = v.GetString("MEDIA_APP_SECRET")
	cfg.Media.TokenTTL = v.GetDuration("MEDIA_TOKEN_TTL")

	cfg.Notify.Timeout = v.GetDuration("NOTIFY_TIMEOUT")
	cfg.Notify.WebhookURL = v.GetString("NOTIFY_WEBHOOK_URL")
	cfg.Notify.RedisAddr = v.GetString("REDIS_ADDR")
	cfg.Notify.RedisPass = v.GetString("REDIS_PASSWORD")
	cfg.Notify.RedisDB = v.GetInt("REDIS_DB")
	cfg.Notify.RedisChannel = v.GetString("NOTIFY_REDIS_CHANNEL")
	cfg.Notify.AMQPURL = v.GetString("RABBITMQ_URL")
	cfg.Notify.AMQPQueue = v.GetString("NOTIFY_AMQP_QUEUE")
	cfg.Notify.KafkaBrokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Notify.KafkaTopic = v.GetString("NOTIFY_KAFKA_TOPIC")
	return cfg, nil
}

// Validate checks durations and production safety.
func (c *Config) Validate() error {
	if c.HeartbeatWindow <= 0 {
		return errors.New("config: HEARTBEAT_WINDOW must be positive")
	}
	if c.PK.MinDuration <= 0 || c.PK.MaxDuration < c.PK.MinDuration {
		return errors.New("config: PK_MIN_DURATION/PK_MAX_DURATION are inconsistent")
	}
	if c.PK.DefaultDuration < c.PK.MinDuration || c.PK.DefaultDuration > c.PK.MaxDuration {
		return errors.New("config: PK_DEFAULT_DURATION must be within PK_MIN_DURATION..PK_MAX_DURATION")
	}
	if c.PK.InviteTTL <= 0 {
		return errors.New("config: PK_INVITE_TTL must be positive")
	}
	if c.Notify.Timeout <= 0 {
		return errors.New("config: NOTIFY_TIMEOUT must be positive")
	}
	if c.AppEnv == "production" && (c.Media.AppID == "" || c.Media.AppSecret == "") {
		return errors.New("config: in production MEDIA_APP_ID and MEDIA_APP_SECRET are required")
	}
	return nil
}

// Addr returns listen address for HTTP server.
func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

func firstEnv(v *viper.Viper, keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	keys := keysAndDef[:len(keysAndDef)-1]
	for _, k := range keys {
		if s := v.GetString(k); s != "" {
			return s
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
