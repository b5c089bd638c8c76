// Package config loads the server configuration from the environment.
package config

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/warden/core"
	"github.com/sethvargo/go-envconfig"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Event sinks
const (
	EventsNone  = "none"
	EventsRedis = "redis"
)

// Config is the server configuration read from the environment
type Config struct {
	Port       string `env:"PORT,       default=9000"`
	LogLevel   string `env:"LOG_LEVEL,  default=info"`
	LogPretty  bool   `env:"LOG_PRETTY, default=false"`
	Store      string `env:"STORE,      default=memory"`
	Events     string `env:"EVENTS,     default=none"`
	RedisURL   string `env:"REDIS_URL,  default=redis://localhost:6379/0"`
	DBPath     string `env:"DATABASE_PATH, default=data/warden.db"`
	SigningKey string `env:"SIGNING_KEY_PATH"`

	NonceTTL    time.Duration `env:"NONCE_TTL,   default=5m"`
	APIKeyTTL   time.Duration `env:"API_KEY_TTL, default=720h"`
	BcryptCost  int           `env:"BCRYPT_COST, default=10"`
	SeedInvites []string      `env:"SEED_INVITES"`

	Chain ChainConfig
}

// ChainConfig describes the network wallets sign in on
type ChainConfig struct {
	ID             uint64 `env:"CHAIN_ID,              default=1"`
	Name           string `env:"CHAIN_NAME,            default=Ethereum Mainnet"`
	RPCURL         string `env:"CHAIN_RPC_URL,         default=https://cloudflare-eth.com"`
	CurrencyName   string `env:"CHAIN_CURRENCY_NAME,   default=Ether"`
	CurrencySymbol string `env:"CHAIN_CURRENCY_SYMBOL, default=ETH"`
	ExplorerURL    string `env:"CHAIN_EXPLORER_URL,    default=https://etherscan.io"`
}

// Chain converts the chain settings into the descriptor offered to wallets
func (c ChainConfig) Chain() core.Chain {
	chain := core.Chain{
		ID:             c.ID,
		Name:           c.Name,
		CurrencyName:   c.CurrencyName,
		CurrencySymbol: c.CurrencySymbol,
		Decimals:       18,
	}
	if c.RPCURL != "" {
		chain.RPCURLs = []string{c.RPCURL}
	}
	if c.ExplorerURL != "" {
		chain.ExplorerURLs = []string{c.ExplorerURL}
	}
	return chain
}

// Load reads configuration from environment variables using go-envconfig.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("config: unknown STORE %q", c.Store)
	}
	switch c.Events {
	case EventsNone, EventsRedis:
	default:
		return fmt.Errorf("config: unknown EVENTS %q", c.Events)
	}
	if c.NonceTTL <= 0 {
		return fmt.Errorf("config: NONCE_TTL must be positive")
	}
	if c.APIKeyTTL <= 0 {
		return fmt.Errorf("config: API_KEY_TTL must be positive")
	}
	return nil
}
