// Command monitor runs the Passive Monitor Service: it scrapes configured
// boards, clusters related threads, and streams accepted headlines over
// the event bus. All components are wired here by hand (§9: "treat [a DI
// container] as a construction convenience, not a requirement").
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/clustering"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/config"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/eventbus"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/llmgateway"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/logging"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/monitor"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/scraper"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/storage/cache"
	"github.com/bsommerfeld/wsbg-terminal-sub002/internal/storage/sqlite"
)

const appName = "wsbg-terminal"

// liveScraperBaseURL is the board's JSON listing API root (§4.3).
const liveScraperBaseURL = "https://www.reddit.com"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New(logging.LevelInfo)

	paths, err := config.Resolve(appName)
	if err != nil {
		return fmt.Errorf("resolving application data directory: %w", err)
	}

	cfg, err := config.Load(paths.ConfigFile, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.DebugMode {
		logger = logging.New(logging.LevelDebug)
	}

	testMode := os.Getenv("APP_MODE") == "TEST"

	store, err := openStorage(paths.DatabaseFile, testMode)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	repo := cache.New(store, logger)
	bus := eventbus.New(logger)

	scr := buildScraper(testMode, repo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gateway, err := buildGateway(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("resolving LLM models: %w", err)
	}

	clusterOpts := clustering.DefaultOptions()
	clusterOpts.SimilarityThreshold = cfg.Reddit.SimilarityThreshold
	clusterEngine := clustering.New(gateway, clusterOpts)

	svc := monitor.New(cfg, repo, store, scr, clusterEngine, gateway, bus, logger)

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("starting monitor: %w", err)
	}

	logger.Info("passive monitor running", "boards", cfg.Reddit.Subreddits, "test_mode", testMode)

	watcher := config.NewWatcher(paths.ConfigFile, bus, logger, func() config.Config { return cfg }, func(next config.Config) { cfg = next })
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("config watcher failed to start", "error", err)
	} else {
		defer watcher.Stop()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")
	svc.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := repo.Shutdown(shutdownCtx); err != nil {
		logger.Warn("cache did not drain outstanding writes in time", "error", err)
	}
	return nil
}

func openStorage(path string, testMode bool) (*sqlite.Store, error) {
	if testMode {
		return sqlite.Open(":memory:", sqlite.DefaultOptions())
	}
	return sqlite.Open(path, sqlite.DefaultOptions())
}

func buildScraper(testMode bool, repo scraper.Repository, logger logging.Logger) scraper.Scraper {
	if testMode {
		return scraper.NewTestModeScraper(repo)
	}
	return scraper.NewLiveScraper(liveScraperBaseURL, 1.0, 5, repo, logger)
}

// buildGateway resolves every configured model role against the Ollama
// server's inventory before constructing the gateway. A reasoning model
// that can't be resolved in its family is fatal (§7); the translator role
// is optional and falls back to the configured name on resolution failure.
func buildGateway(ctx context.Context, cfg config.Config, logger logging.Logger) (*llmgateway.OllamaGateway, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}
	ollama := cfg.Agent.Ollama

	resolveCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	reasoningModel, err := llmgateway.ResolveModel(resolveCtx, httpClient, ollama.Endpoint, ollama.ReasoningModel, ollama.ReasoningFamily)
	if err != nil {
		return nil, fmt.Errorf("resolving reasoning model: %w", err)
	}

	translatorModel := ollama.TranslatorModel
	if translatorModel != "" {
		if resolved, err := llmgateway.ResolveModel(resolveCtx, httpClient, ollama.Endpoint, ollama.TranslatorModel, ollama.TranslatorFamily); err == nil {
			translatorModel = resolved
		} else {
			logger.Warn("translator model not found in inventory, keeping configured name", "model", translatorModel, "error", err)
		}
	}

	return llmgateway.NewOllamaGateway(llmgateway.Config{
		Endpoint:        ollama.Endpoint,
		ReasoningModel:  reasoningModel,
		TranslatorModel: translatorModel,
		EmbeddingModel:  ollama.EmbeddingModel,
		VisionModel:     ollama.VisionModel,
	}, logger), nil
}
