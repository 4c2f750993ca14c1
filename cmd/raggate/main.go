// Command raggate runs the RAG gateway HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweetpotato0/raggate/cache"
	"github.com/sweetpotato0/raggate/config"
	"github.com/sweetpotato0/raggate/embedder"
	"github.com/sweetpotato0/raggate/pkg/logging"
	"github.com/sweetpotato0/raggate/pkg/telemetry"
	"github.com/sweetpotato0/raggate/provider"
	"github.com/sweetpotato0/raggate/server"

	geminiembed "github.com/sweetpotato0/raggate/contrib/embedder/gemini"
	openaiembed "github.com/sweetpotato0/raggate/contrib/embedder/openai"
	"github.com/sweetpotato0/raggate/contrib/provider/claude"
	"github.com/sweetpotato0/raggate/contrib/provider/gemini"
	"github.com/sweetpotato0/raggate/contrib/provider/openai"
)

func main() {
	logger := logging.WithComponent("main")
	if err := run(logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "raggate",
		Environment: cfg.Server.Env,
		Disable:     os.Getenv("OTEL_SDK_DISABLED") == "true",
	})
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	client, closeProvider, err := buildProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeProvider()

	emb, closeEmbedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeEmbedder()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	srv := server.New(cfg, client, emb, store)
	httpSrv := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", cfg.Address()), slog.String("provider", cfg.AI.Provider))
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

func buildProvider(ctx context.Context, cfg *config.Config) (provider.Client, func(), error) {
	noop := func() {}
	switch cfg.AI.Provider {
	case "gemini":
		client, err := gemini.New(ctx, cfg.AI.GeminiAPIKey, cfg.AI.DefaultModel)
		if err != nil {
			return nil, nil, err
		}
		return client, func() { client.Close() }, nil
	case "claude":
		return claude.New(cfg.AI.AnthropicAPIKey, "", cfg.AI.DefaultModel), noop, nil
	default:
		return openai.New(cfg.AI.OpenAIAPIKey, "", cfg.AI.OpenAIOrgID, cfg.AI.DefaultModel), noop, nil
	}
}

// buildEmbedder picks the embedding backend matching the provider. Claude has
// no embedding API, so it pairs with OpenAI embeddings.
func buildEmbedder(ctx context.Context, cfg *config.Config) (embedder.Embedder, func(), error) {
	noop := func() {}
	var (
		emb     embedder.Embedder
		cleanup = noop
	)
	switch cfg.AI.Provider {
	case "gemini":
		inner, err := geminiembed.New(ctx, cfg.AI.GeminiAPIKey, cfg.AI.EmbeddingModel, cfg.AI.EmbeddingDimension)
		if err != nil {
			return nil, nil, err
		}
		emb = inner
		if closer, ok := inner.(interface{ Close() error }); ok {
			cleanup = func() { closer.Close() }
		}
	default:
		emb = openaiembed.New(cfg.AI.OpenAIAPIKey, "", cfg.AI.OpenAIOrgID, cfg.AI.EmbeddingModel, cfg.AI.EmbeddingDimension)
	}
	return embedder.NewCached(emb), cleanup, nil
}

func buildStore(ctx context.Context, cfg *config.Config) (cache.Store, error) {
	if cfg.Redis.Addr != "" {
		return cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.DefaultTTL)
	}
	return cache.NewMemory(cfg.Cache.MaxSize, cfg.Cache.DefaultTTL), nil
}
