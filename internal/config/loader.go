package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CHAMBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CHAMBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file. Chain tables are file-only; only scalar settings are overridable.
func applyEnvOverrides(cfg *Config) {
	// ── Automation ──
	setStr(&cfg.Automation.Address, "CHAMBOT_AUTOMATION_ADDRESS")
	setStr(&cfg.Automation.PrivateKey, "CHAMBOT_AUTOMATION_PRIVATE_KEY")
	setStr(&cfg.Automation.EncryptedKeyPath, "CHAMBOT_AUTOMATION_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Automation.KeyPassword, "CHAMBOT_AUTOMATION_KEY_PASSWORD")

	// ── Engine ──
	setInt64(&cfg.Engine.MinGainBps, "CHAMBOT_ENGINE_MIN_GAIN_BPS")
	setInt64(&cfg.Engine.ReferenceAmountUSD, "CHAMBOT_ENGINE_REFERENCE_AMOUNT_USD")
	setInt64(&cfg.Engine.ProjectionDays, "CHAMBOT_ENGINE_PROJECTION_DAYS")
	setInt64(&cfg.Engine.MinProfitUSD, "CHAMBOT_ENGINE_MIN_PROFIT_USD")
	setInt64(&cfg.Engine.SameChainCostUSD, "CHAMBOT_ENGINE_SAME_CHAIN_COST_USD")
	setInt64(&cfg.Engine.CrossChainCostUSD, "CHAMBOT_ENGINE_CROSS_CHAIN_COST_USD")
	setDuration(&cfg.Engine.CycleInterval, "CHAMBOT_ENGINE_CYCLE_INTERVAL")
	setDuration(&cfg.Engine.UserPacing, "CHAMBOT_ENGINE_USER_PACING")
	setInt(&cfg.Engine.MaxReadsPerChain, "CHAMBOT_ENGINE_MAX_READS_PER_CHAIN")
	setDuration(&cfg.Engine.SnapshotMaxAge, "CHAMBOT_ENGINE_SNAPSHOT_MAX_AGE")
	setDuration(&cfg.Engine.BridgeTimeout, "CHAMBOT_ENGINE_BRIDGE_TIMEOUT")
	setDuration(&cfg.Engine.UserLockTTL, "CHAMBOT_ENGINE_USER_LOCK_TTL")
	setDuration(&cfg.Engine.CooldownTTL, "CHAMBOT_ENGINE_COOLDOWN_TTL")
	setBool(&cfg.Engine.RecordAPYs, "CHAMBOT_ENGINE_RECORD_APYS")
	setStringSlice(&cfg.Engine.Users, "CHAMBOT_ENGINE_USERS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CHAMBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CHAMBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CHAMBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CHAMBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CHAMBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CHAMBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CHAMBOT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CHAMBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CHAMBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CHAMBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CHAMBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CHAMBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CHAMBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CHAMBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CHAMBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CHAMBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "CHAMBOT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "CHAMBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CHAMBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "CHAMBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CHAMBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CHAMBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CHAMBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CHAMBOT_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "CHAMBOT_S3_RETENTION_DAYS")
	setDuration(&cfg.S3.ArchiveInterval, "CHAMBOT_S3_ARCHIVE_INTERVAL")

	// ── Bridge ──
	setBool(&cfg.Bridge.Enabled, "CHAMBOT_BRIDGE_ENABLED")
	setStr(&cfg.Bridge.WSURL, "CHAMBOT_BRIDGE_WS_URL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CHAMBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CHAMBOT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CHAMBOT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CHAMBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CHAMBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CHAMBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CHAMBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CHAMBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CHAMBOT_MODE")
	setStr(&cfg.LogLevel, "CHAMBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
