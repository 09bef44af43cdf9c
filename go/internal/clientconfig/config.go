package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds auction client settings.
type Config struct {
	APIURL       string        `yaml:"api_url"`
	WSURL        string        `yaml:"ws_url"`
	AuctionID    string        `yaml:"auction_id"`
	AdminToken   string        `yaml:"admin_token"`
	IdentityFile string        `yaml:"identity_file"`
	RedisAddr    string        `yaml:"redis_addr"`
	NATSURL      string        `yaml:"nats_url"`
	OverlayPort  string        `yaml:"overlay_port"`
	LogLevel     string        `yaml:"log_level"`
	TickInterval time.Duration `yaml:"tick_interval"`
}

// NewConfigFromEnv reads AUCTION_* environment variables (with defaults). When
// AUCTION_CONFIG names a yaml file, its values sit between the defaults and
// the environment.
func NewConfigFromEnv() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("AUCTION_CONFIG"); path != "" {
		fileCfg, err := loadConfig(path)
		if err != nil {
			return Config{}, err
		}
		cfg = merge(cfg, fileCfg)
	}

	cfg.APIURL = getEnv("AUCTION_API_URL", cfg.APIURL)
	cfg.WSURL = getEnv("AUCTION_WS_URL", cfg.WSURL)
	cfg.AuctionID = getEnv("AUCTION_ID", cfg.AuctionID)
	cfg.AdminToken = getEnv("AUCTION_ADMIN_TOKEN", cfg.AdminToken)
	cfg.IdentityFile = getEnv("AUCTION_IDENTITY_FILE", cfg.IdentityFile)
	cfg.RedisAddr = getEnv("AUCTION_REDIS_ADDR", cfg.RedisAddr)
	cfg.NATSURL = getEnv("AUCTION_NATS_URL", cfg.NATSURL)
	cfg.OverlayPort = getEnv("OVERLAY_PORT", cfg.OverlayPort)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	if ms := getEnvAsInt("TIMER_TICK_MS", 0); ms > 0 {
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	}

	if cfg.WSURL == "" {
		cfg.WSURL = cfg.APIURL
	}
	return cfg, cfg.Validate()
}

// Defaults match a local development server.
func Defaults() Config {
	return Config{
		APIURL:       "http://localhost:8000",
		IdentityFile: ".auction/identity.yaml",
		OverlayPort:  "8090",
		LogLevel:     "info",
		TickInterval: 50 * time.Millisecond,
	}
}

func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("AUCTION_API_URL is required")
	}
	if c.TickInterval <= 0 {
		return errors.New("tick interval must be positive")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	return nil
}

// Level returns the configured log level, info when unset.
func (c Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func loadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// merge overlays the non-zero fields of over onto base.
func merge(base, over Config) Config {
	pick := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	pick(&base.APIURL, over.APIURL)
	pick(&base.WSURL, over.WSURL)
	pick(&base.AuctionID, over.AuctionID)
	pick(&base.AdminToken, over.AdminToken)
	pick(&base.IdentityFile, over.IdentityFile)
	pick(&base.RedisAddr, over.RedisAddr)
	pick(&base.NATSURL, over.NATSURL)
	pick(&base.OverlayPort, over.OverlayPort)
	pick(&base.LogLevel, over.LogLevel)
	if over.TickInterval > 0 {
		base.TickInterval = over.TickInterval
	}
	return base
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}
