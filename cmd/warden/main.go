package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/layer-3/warden/adapters/events"
	"github.com/layer-3/warden/adapters/store"
	"github.com/layer-3/warden/adapters/tokenizer"
	"github.com/layer-3/warden/core"
	"github.com/layer-3/warden/internal/config"
	"github.com/layer-3/warden/internal/logger"
	"github.com/layer-3/warden/internal/metrics"
	"github.com/layer-3/warden/ports"
	"github.com/layer-3/warden/service"
	transport "github.com/layer-3/warden/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const janitorInterval = time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	signKey, err := tokenizer.LoadOrGenerateKey(cfg.SigningKey)
	if err != nil {
		return err
	}
	if cfg.SigningKey == "" {
		log.Warn().Msg("SIGNING_KEY_PATH not set, sessions will not survive a restart")
	}

	var redisClient *redis.Client
	if cfg.Store == config.StoreRedis || cfg.Events == config.EventsRedis {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach Redis: %w", err)
		}
	}

	accounts, err := store.NewSQLiteAccountStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer accounts.Close()

	var (
		nonces      ports.NonceStore
		credentials ports.CredentialStore
	)
	switch cfg.Store {
	case config.StoreRedis:
		nonces = store.NewRedisNonceStore(redisClient)
		credentials = store.NewRedisCredentialStore(redisClient)
	default:
		memNonces := store.NewMemoryNonceStore()
		go memNonces.Run(ctx, janitorInterval)
		nonces = memNonces
		credentials = store.NewMemoryCredentialStore()
	}

	publisher, err := newPublisher(cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	authService := service.NewAuthService(
		accounts,
		nonces,
		credentials,
		tokenizer.NewJWTTokenizer(signKey),
		events.NewWatermillPublisher(publisher),
		metrics.New(reg),
		log,
		service.Config{
			Chain:      cfg.Chain.Chain(),
			NonceTTL:   cfg.NonceTTL,
			APIKeyTTL:  cfg.APIKeyTTL,
			BcryptCost: cfg.BcryptCost,
		},
	)

	for _, code := range cfg.SeedInvites {
		err := authService.CreateInvite(ctx, code)
		switch {
		case errors.Is(err, core.ErrInvalidInvite):
			log.Debug().Str("invite", code).Msg("invite already seeded")
		case err != nil:
			return fmt.Errorf("failed to seed invite: %w", err)
		}
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           transport.SetupRouter(authService, log, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("store", cfg.Store).
			Uint64("chain_id", cfg.Chain.ID).
			Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newPublisher(cfg *config.Config, client *redis.Client, log zerolog.Logger) (message.Publisher, error) {
	wmLogger := logger.Watermill(log.With().Str("component", "events").Logger())

	if cfg.Events == config.EventsRedis {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: client,
			},
			wmLogger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
		return publisher, nil
	}

	return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
}
