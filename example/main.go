package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/wirnat/chat-widget/botserver"
	"github.com/wirnat/chat-widget/config"
	"github.com/wirnat/chat-widget/example/intents"
	"github.com/wirnat/chat-widget/logger"
)

// demo client used when CHATBOT_CLIENTS is empty
const (
	DemoClient = "Demo"
	DemoToken  = "abc"
)

func main() {
	cfg, err := config.LoadServer(".env")
	if err != nil {
		panic(err)
	}

	log, closer, err := logger.New(logger.Options{Level: cfg.LogLevel, Console: true})
	if err != nil {
		panic(err)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("chat backend stopped")
	}
}

func run(ctx context.Context, cfg *config.ServerConfig, log zerolog.Logger) error {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := ensureClients(ctx, cfg, store, log); err != nil {
		return err
	}

	sources := botserver.SourcesFromDefinitions(intents.All()...)
	if cfg.IntentsDir != "" {
		fromDir, err := botserver.LoadIntentDir(cfg.IntentsDir, log)
		if err != nil {
			return err
		}
		sources.Merge(fromDir)
	}
	if _, err := botserver.Seed(ctx, store, sources, cfg.ClearIntents, log); err != nil {
		return err
	}

	var tracker botserver.ConversationTracker = botserver.NewStoreTracker(store, cfg.ConversationWindow)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			DB:       cfg.RedisDB,
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		rt, err := botserver.NewRedisTracker(ctx, rdb, store, cfg.ConversationWindow)
		if err != nil {
			return err
		}
		defer rt.Close()
		tracker = rt
		log.Info().Str("addr", cfg.RedisAddr).Msg("tracking conversations in redis")
	}

	var limiter *botserver.RateLimiter
	if rl := cfg.RateLimit; rl.PerMinute > 0 || rl.PerHour > 0 || rl.PerDay > 0 {
		limiter = botserver.NewRateLimiter(rl.PerMinute, rl.PerHour, rl.PerDay)
	}

	srv := botserver.New(botserver.Options{
		Store:          store,
		Tracker:        tracker,
		Threshold:      cfg.ConfidenceThreshold,
		ImagesDir:      cfg.ImagesDir,
		ImagesBaseURL:  cfg.ImagesBaseURL,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter:    limiter,
		AdminToken:     cfg.AdminToken,
		Logger:         &log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func openStore(ctx context.Context, cfg *config.ServerConfig, log zerolog.Logger) (botserver.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("CHATBOT_DATABASE_URL not set, using in-memory store")
		return botserver.NewMemoryStore(), nil
	}
	return botserver.NewPostgresStore(ctx, cfg.DatabaseURL)
}

func ensureClients(ctx context.Context, cfg *config.ServerConfig, store botserver.Store, log zerolog.Logger) error {
	tokens, err := cfg.ClientTokens()
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		tokens = map[string]string{DemoClient: DemoToken}
		log.Warn().Str("token", DemoToken).Msg("no clients configured, registering the demo client")
	}
	return botserver.EnsureClients(ctx, store, tokens, log)
}
