package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/chameleonfi/chameleon-bot/internal/blob/s3"
	"github.com/chameleonfi/chameleon-bot/internal/cache/redis"
	"github.com/chameleonfi/chameleon-bot/internal/chain"
	"github.com/chameleonfi/chameleon-bot/internal/config"
	"github.com/chameleonfi/chameleon-bot/internal/crypto"
	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/notify"
	"github.com/chameleonfi/chameleon-bot/internal/registry"
	"github.com/chameleonfi/chameleon-bot/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the application modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry *registry.Registry
	Clients  *chain.Clients
	Reader   domain.ChainReader
	Writer   domain.ChainWriter // nil in read-only modes

	Outcomes  domain.OutcomeStore
	Cooldowns domain.CooldownCache
	Locks     domain.LockManager

	Archiver *s3blob.Archiver // nil unless S3 is enabled

	Notifier       *notify.Notifier
	EngineNotifier *notify.EngineNotifier
}

// needsWriter returns true for modes that submit state-changing transactions.
func needsWriter(mode string) bool {
	switch mode {
	case "run", "once", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain registry and RPC clients ---
	chains, adapters := cfg.RegistryInputs()
	reg, err := registry.New(chains, adapters)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: registry: %w", err)
	}
	deps.Registry = reg

	automation := common.HexToAddress(cfg.Automation.Address)
	clients, err := chain.Dial(ctx, reg, automation, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: chain clients: %w", err)
	}
	closers = append(closers, clients.Close)
	deps.Clients = clients
	deps.Reader = chain.NewReader(clients)

	// Writer only in modes that submit transactions; read-only modes never
	// need the key material loaded.
	if needsWriter(strings.ToLower(cfg.Mode)) {
		key, err := crypto.LoadECDSAKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Automation.PrivateKey,
			EncryptedKeyPath: cfg.Automation.EncryptedKeyPath,
			KeyPassword:      cfg.Automation.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: engine key: %w", err)
		}
		deps.Writer = chain.NewWriter(clients, key, logger)
	}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Outcomes = postgres.NewOutcomeStore(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Cooldowns = redis.NewCooldownCache(redisClient, cfg.Engine.CooldownTTL.Duration)
	deps.Locks = redis.NewLockManager(redisClient)

	// --- S3 outcome archiver ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		retention := time.Duration(cfg.S3.RetentionDays) * 24 * time.Hour
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Outcomes, retention, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.EngineNotifier = notify.NewEngineNotifier(deps.Notifier)

	return deps, cleanup, nil
}
