package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

// Duration wraps time.Duration so TOML values read as "5s", "2m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	Market   MarketConfig   `toml:"market"`
	MySQL    MySQLConfig    `toml:"mysql"`
	Redis    RedisConfig    `toml:"redis"`
	Ops      OpsConfig      `toml:"ops"`
	Engine   EngineConfig   `toml:"engine"`
}

type TelegramConfig struct {
	// Token can also come from the BOT_TOKEN environment variable, which
	// wins over the file.
	Token       string `toml:"token"`
	GroupChatID string `toml:"group_chat_id"`
}

type MarketConfig struct {
	// ListingFeePercent is a decimal string ("20", "2.5") so the money
	// path never passes through float64.
	ListingFeePercent string   `toml:"listing_fee_percent"`
	Currency          string   `toml:"currency"`
	Admins            []string `toml:"admins"`
}

// FeePercent returns the parsed fee percentage. Validate guarantees it
// parses and sits in (0, 100].
func (m MarketConfig) FeePercent() decimal.Decimal {
	percent, _ := decimal.NewFromString(m.ListingFeePercent)
	return percent
}

type MySQLConfig struct {
	DSN             string   `toml:"dsn"`
	MaxOpenConns    int      `toml:"max_open_conns"`
	MaxIdleConns    int      `toml:"max_idle_conns"`
	ConnMaxLifetime Duration `toml:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	PoolSize int    `toml:"pool_size"`
}

type OpsConfig struct {
	ListenAddr string `toml:"listen_addr"`
	JWTSecret  string `toml:"jwt_secret"`
}

type EngineConfig struct {
	WorkerCount  int      `toml:"worker_count"`
	QueueSize    int      `toml:"queue_size"`
	StoreTimeout Duration `toml:"store_timeout"`
	LockTTL      Duration `toml:"lock_ttl"`
}

// Default returns the baseline configuration; Load overlays the file
// and environment on top of it.
func Default() Config {
	return Config{
		Market: MarketConfig{
			ListingFeePercent: "20",
			Currency:          "CFA",
		},
		MySQL: MySQLConfig{
			DSN:             "root:root@tcp(localhost:3306)/marketbot?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: Duration(5 * time.Minute),
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Ops: OpsConfig{
			ListenAddr: ":8080",
		},
		Engine: EngineConfig{
			WorkerCount:  10,
			QueueSize:    10000,
			StoreTimeout: Duration(5 * time.Second),
			LockTTL:      Duration(30 * time.Second),
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if token := os.Getenv("BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required (config or BOT_TOKEN)")
	}
	if c.Telegram.GroupChatID == "" {
		return fmt.Errorf("telegram group_chat_id is required")
	}
	if len(c.Market.Admins) < 2 {
		return fmt.Errorf("at least two admins are required, got %d", len(c.Market.Admins))
	}
	percent, err := decimal.NewFromString(c.Market.ListingFeePercent)
	if err != nil {
		return fmt.Errorf("listing_fee_percent must be a decimal string, got %q", c.Market.ListingFeePercent)
	}
	if percent.Sign() <= 0 || percent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("listing_fee_percent must be in (0, 100], got %s", percent)
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql dsn is required")
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.Ops.JWTSecret == "" {
		return fmt.Errorf("ops jwt_secret is required")
	}
	if c.Engine.WorkerCount <= 0 || c.Engine.QueueSize <= 0 {
		return fmt.Errorf("engine worker_count and queue_size must be positive")
	}
	return nil
}
