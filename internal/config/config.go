// Package config defines the top-level configuration for the chameleon
// rebalancing engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CHAMBOT_* environment
// variables.
type Config struct {
	Chains     []ChainConfig    `toml:"chains"`
	Automation AutomationConfig `toml:"automation"`
	Engine     EngineConfig     `toml:"engine"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Bridge     BridgeConfig     `toml:"bridge"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ChainConfig describes one supported network and its protocol adapters.
// An empty vault_address marks the chain as not yet deployed: it stays in
// the table but is never queried.
type ChainConfig struct {
	ID           uint64           `toml:"id"`
	Name         string           `toml:"name"`
	RPCURL       string           `toml:"rpc_url"`
	WSURL        string           `toml:"ws_url"`
	VaultAddress string           `toml:"vault_address"`
	Protocols    []ProtocolConfig `toml:"protocols"`
}

// ProtocolConfig describes one protocol adapter on a chain. An empty
// adapter_address marks the adapter as not deployed.
type ProtocolConfig struct {
	ID             uint64 `toml:"id"`
	Name           string `toml:"name"`
	Kind           string `toml:"kind"`
	AdapterAddress string `toml:"adapter_address"`
	AssetAddress   string `toml:"asset_address"`
}

// AutomationConfig holds the automation contract address and the engine
// wallet credentials.
type AutomationConfig struct {
	Address          string `toml:"address"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// EngineConfig holds the rebalancing decision parameters.
type EngineConfig struct {
	MinGainBps          int64    `toml:"min_gain_bps"`
	ReferenceAmountUSD  int64    `toml:"reference_amount_usd"`  // micro-USD
	ProjectionDays      int64    `toml:"projection_days"`
	MinProfitUSD        int64    `toml:"min_profit_usd"`        // micro-USD
	SameChainCostUSD    int64    `toml:"same_chain_cost_usd"`   // micro-USD
	CrossChainCostUSD   int64    `toml:"cross_chain_cost_usd"`  // micro-USD
	CycleInterval       duration `toml:"cycle_interval"`
	UserPacing          duration `toml:"user_pacing"`
	MaxReadsPerChain    int      `toml:"max_reads_per_chain"`
	SnapshotMaxAge      duration `toml:"snapshot_max_age"`
	BridgeTimeout       duration `toml:"bridge_timeout"`
	UserLockTTL         duration `toml:"user_lock_ttl"`
	CooldownTTL         duration `toml:"cooldown_ttl"`
	RecordAPYs          bool     `toml:"record_apys"`
	Users               []string `toml:"users"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds object storage parameters for the outcome archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`

	ArchiveInterval duration `toml:"archive_interval"`
}

// BridgeConfig holds the bridge collaborator endpoint.
type BridgeConfig struct {
	Enabled bool   `toml:"enabled"`
	WSURL   string `toml:"ws_url"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MinGainBps:         50,
			ReferenceAmountUSD: 1_000_000_000, // $1000
			ProjectionDays:     30,
			MinProfitUSD:       1_000_000, // $1
			SameChainCostUSD:   1_000_000, // $1
			CrossChainCostUSD:  5_000_000, // $5
			CycleInterval:      duration{15 * time.Minute},
			UserPacing:         duration{5 * time.Second},
			MaxReadsPerChain:   4,
			SnapshotMaxAge:     duration{2 * time.Minute},
			BridgeTimeout:      duration{30 * time.Minute},
			UserLockTTL:        duration{5 * time.Minute},
			CooldownTTL:        duration{time.Hour},
			RecordAPYs:         false,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "chambot",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "chambot-data",
			UseSSL:         false,
			ForcePathStyle:  true,
			RetentionDays:   90,
			ArchiveInterval: duration{6 * time.Hour},
		},
		Bridge: BridgeConfig{
			Enabled: false,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"rebalance_executed", "bridge_completed", "bridge_failed", "cycle_finished"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"once":    true,
	"monitor": true,
	"events":  true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validKinds enumerates the accepted protocol kinds.
var validKinds = map[string]bool{
	"lending-pool":  true,
	"money-market":  true,
	"curated-vault": true,
}

// needsWriter returns true for modes that submit state-changing calls.
func needsWriter(mode string) bool {
	switch mode {
	case "run", "once", "full":
		return true
	default:
		return false
	}
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, once, monitor, events, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chains
	if len(c.Chains) == 0 {
		errs = append(errs, "chains: at least one chain must be configured")
	}
	seenChain := map[uint64]bool{}
	for _, ch := range c.Chains {
		if seenChain[ch.ID] {
			errs = append(errs, fmt.Sprintf("chains: duplicate chain id %d", ch.ID))
		}
		seenChain[ch.ID] = true
		if ch.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("chains: chain %d (%s) rpc_url must not be empty", ch.ID, ch.Name))
		}
		seenProto := map[uint64]bool{}
		for _, p := range ch.Protocols {
			if seenProto[p.ID] {
				errs = append(errs, fmt.Sprintf("chains: chain %d duplicate protocol id %d", ch.ID, p.ID))
			}
			seenProto[p.ID] = true
			if !validKinds[p.Kind] {
				errs = append(errs, fmt.Sprintf("chains: chain %d protocol %q unknown kind %q", ch.ID, p.Name, p.Kind))
			}
		}
	}

	// Automation: writer modes need the contract and a key source.
	if needsWriter(c.Mode) {
		if c.Automation.Address == "" {
			errs = append(errs, "automation: address must be set for mode "+c.Mode)
		}
		if c.Automation.PrivateKey == "" && c.Automation.EncryptedKeyPath == "" {
			errs = append(errs, "automation: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
		if c.Automation.EncryptedKeyPath != "" && c.Automation.KeyPassword == "" {
			errs = append(errs, "automation: key_password is required when encrypted_key_path is set")
		}
	}

	// Engine
	if c.Engine.MinGainBps <= 0 {
		errs = append(errs, "engine: min_gain_bps must be > 0")
	}
	if c.Engine.ReferenceAmountUSD <= 0 {
		errs = append(errs, "engine: reference_amount_usd must be > 0")
	}
	if c.Engine.ProjectionDays <= 0 {
		errs = append(errs, "engine: projection_days must be > 0")
	}
	if c.Engine.CrossChainCostUSD <= c.Engine.SameChainCostUSD {
		errs = append(errs, "engine: cross_chain_cost_usd must exceed same_chain_cost_usd")
	}
	if c.Engine.MaxReadsPerChain < 1 {
		errs = append(errs, "engine: max_reads_per_chain must be >= 1")
	}
	if c.Engine.BridgeTimeout.Duration <= 0 {
		errs = append(errs, "engine: bridge_timeout must be > 0")
	}
	if c.Engine.CooldownTTL.Duration <= 0 {
		errs = append(errs, "engine: cooldown_ttl must be > 0")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 when enabled")
		}
	}

	// Bridge
	if c.Bridge.Enabled && c.Bridge.WSURL == "" {
		errs = append(errs, "bridge: ws_url must not be empty when enabled")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
