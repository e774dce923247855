package configs

import (
	"fmt"
	"time"

	"github.com/auxroom/auxroom/internal/infrastructure/env"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	RoomStore   RoomStoreConfig   `koanf:"room_store"`
	Room        RoomConfig        `koanf:"room"`
	Sync        SyncConfig        `koanf:"sync"`
	Session     SessionConfig     `koanf:"session"`
	Codec       CodecConfig       `koanf:"codec"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	RequestsPerTimeFrame int           `koanf:"requestsPerTimeFrame"`
	TimeFrame            time.Duration `koanf:"timeFrame"`
}

type RoomStoreConfig struct {
	Capacity       uint          `koanf:"capacity"`
	IdleRoomExpiry time.Duration `koanf:"idle_room_expiry"`
}

type RoomConfig struct {
	MaxMembers int `koanf:"max_members"`
	MaxPending int `koanf:"max_pending"`
}

type SyncConfig struct {
	// BufferTimeout bounds how long a track change waits for every
	// listener's buffer-complete before starting without the laggards.
	BufferTimeout time.Duration `koanf:"buffer_timeout"`
	CommandBuffer int           `koanf:"command_buffer"`
}

type SessionConfig struct {
	Secret      string        `koanf:"secret"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	GracePeriod time.Duration `koanf:"grace_period"`
}

type CodecConfig struct {
	// Compression is one of "none", "gzip", "snappy". Both ends of a
	// deployment must agree.
	Compression string `koanf:"compression"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Only return error if file was explicitly provided but failed to load
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.requestsPerTimeFrame", 20)
	setDefault(k, "rateLimiter.timeFrame", 5*time.Second)

	// Store defaults
	setDefault(k, "room_store.capacity", 100)
	setDefault(k, "room_store.idle_room_expiry", time.Hour)

	// Room defaults
	setDefault(k, "room.max_members", 16)
	setDefault(k, "room.max_pending", 32)

	// Sync defaults
	setDefault(k, "sync.buffer_timeout", 15*time.Second)
	setDefault(k, "sync.command_buffer", 256)

	// Session defaults
	setDefault(k, "session.token_ttl", 12*time.Hour)
	setDefault(k, "session.grace_period", time.Minute)

	// Codec defaults
	setDefault(k, "codec.compression", "gzip")
}

func applyEnvOverrides(k *koanf.Koanf) {
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetDuration("HTTP_READ_TIMEOUT", 0); readTimeout > 0 {
		k.Set("http.read_timeout", readTimeout)
	}
	if writeTimeout := env.GetDuration("HTTP_WRITE_TIMEOUT", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", writeTimeout)
	}

	if maxRequests := env.GetInt("RATE_LIMIT_REQUESTS_PER_TIME_FRAME", 0); maxRequests > 0 {
		k.Set("rateLimiter.requestsPerTimeFrame", maxRequests)
	}
	if timeFrame := env.GetDuration("RATE_LIMIT_TIME_FRAME", 0); timeFrame > 0 {
		k.Set("rateLimiter.timeFrame", timeFrame)
	}

	if roomCapacity := env.GetInt("ROOM_STORE_CAPACITY", 0); roomCapacity > 0 {
		k.Set("room_store.capacity", uint(roomCapacity))
	}
	if idleExpiry := env.GetDuration("ROOM_STORE_IDLE_EXPIRY", 0); idleExpiry > 0 {
		k.Set("room_store.idle_room_expiry", idleExpiry)
	}

	if maxMembers := env.GetInt("ROOM_MAX_MEMBERS", 0); maxMembers > 0 {
		k.Set("room.max_members", maxMembers)
	}

	if bufferTimeout := env.GetDuration("SYNC_BUFFER_TIMEOUT", 0); bufferTimeout > 0 {
		k.Set("sync.buffer_timeout", bufferTimeout)
	}

	if secret := env.GetString("SESSION_SECRET", ""); secret != "" {
		k.Set("session.secret", secret)
	}
	if tokenTTL := env.GetDuration("SESSION_TOKEN_TTL", 0); tokenTTL > 0 {
		k.Set("session.token_ttl", tokenTTL)
	}
	if grace := env.GetDuration("SESSION_GRACE_PERIOD", 0); grace > 0 {
		k.Set("session.grace_period", grace)
	}

	if compression := env.GetString("CODEC_COMPRESSION", ""); compression != "" {
		k.Set("codec.compression", compression)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
