// Package main provides the Piexi terminal application: a tabbed,
// AI-assisted search and browse client that runs entirely in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/mittai17/piexi/pkg/bookmarks"
	bookmarkremote "github.com/mittai17/piexi/pkg/bookmarks/remote"
	"github.com/mittai17/piexi/pkg/browse"
	"github.com/mittai17/piexi/pkg/config"
	"github.com/mittai17/piexi/pkg/engine"
	"github.com/mittai17/piexi/pkg/logging"
	"github.com/mittai17/piexi/pkg/search"
	"github.com/mittai17/piexi/pkg/search/openai"
	"github.com/mittai17/piexi/pkg/search/remote"
	"github.com/mittai17/piexi/pkg/session"
	"github.com/mittai17/piexi/pkg/summary"
	"github.com/mittai17/piexi/pkg/ui"
)

const version = "0.1.0"

type cliFlags struct {
	configPath   string
	initialQuery string
	userID       string
	showVersion  bool
}

func main() {
	flags := parseFlags()

	if flags.showVersion {
		fmt.Printf("Piexi v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := run(ctx, flags); err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
}

func parseFlags() *cliFlags {
	flags := &cliFlags{}

	flag.StringVar(&flags.configPath, "config", "", "Path to config file (default: ~/.piexi/config.yaml)")
	flag.StringVar(&flags.initialQuery, "q", "", "Query to run against the first tab on startup")
	flag.StringVar(&flags.userID, "user", os.Getenv("PIEXI_USER"), "User id for bookmark sync (or set PIEXI_USER)")
	flag.BoolVar(&flags.showVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Piexi - an AI search client for the terminal\n\n")
		fmt.Fprintf(os.Stderr, "Usage: piexi [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PIEXI_API_KEY      Backend API key\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY     OpenAI API key (openai provider)\n")
		fmt.Fprintf(os.Stderr, "  PIEXI_USER         User id for bookmark sync\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  piexi\n")
		fmt.Fprintf(os.Stderr, "  piexi -q \"history of the transistor\"\n")
		fmt.Fprintf(os.Stderr, "  piexi -config ./piexi.yaml\n")
	}

	flag.Parse()
	return flags
}

func run(ctx context.Context, flags *cliFlags) error {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New("piexi")
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logger.Close()
	logger.Infof("Piexi v%s starting, provider=%s", version, cfg.Provider)

	svc, err := buildService(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	store := session.NewFileStore(cfg.TabsPath())

	registry := session.NewRegistry(store, logger)
	registry.Bootstrap()

	eng := engine.New(registry, svc, logger)

	policy, err := browse.NewPolicy(cfg.BlockedDomains)
	if err != nil {
		return fmt.Errorf("invalid blocked domains: %w", err)
	}

	var fetcher summary.PageFetcher = browse.NewFetcher(policy)
	if cfg.LiveBrowser {
		live := browse.NewLiveBrowser(policy)
		if err := live.Initialize(); err != nil {
			logger.Warnf("live browser unavailable, falling back to HTTP fetcher: %v", err)
		} else {
			defer live.Shutdown()
			fetcher = live
		}
	}

	gen := summary.NewGenerator(svc, fetcher)

	bm, err := buildBookmarks(ctx, cfg, flags.userID, logger)
	if err != nil {
		return err
	}

	app := ui.NewApp(registry, eng, logger,
		ui.WithSummarizer(gen),
		ui.WithBookmarks(bm),
		ui.WithPageFetcher(fetcher),
		ui.WithInitialQuery(flags.initialQuery),
	)
	return app.Run(ctx)
}

// buildService constructs the configured search backend.
func buildService(cfg config.Config) (search.Service, error) {
	switch cfg.Provider {
	case config.ProviderRemote:
		return remote.NewProvider(cfg.Endpoint, cfg.APIKey,
			remote.WithTokenBudget(cfg.TokenBudget))
	case config.ProviderOpenAI:
		opts := []openai.ProviderOption{
			openai.WithModel(cfg.Model),
			openai.WithTokenBudget(cfg.TokenBudget),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewProvider(cfg.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// buildBookmarks wires the bookmark manager. Without a hosted endpoint or a
// user id, bookmarking runs disabled rather than failing startup.
func buildBookmarks(ctx context.Context, cfg config.Config, userID string, logger *logging.Logger) (*bookmarks.Manager, error) {
	if cfg.Endpoint == "" || userID == "" {
		return bookmarks.NewManager(nil, bookmarks.Anonymous), nil
	}

	client, err := bookmarkremote.NewClient(cfg.Endpoint, cfg.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create bookmark client: %w", err)
	}

	manager := bookmarks.NewManager(client, bookmarks.StaticIdentity(userID))
	if err := manager.Reload(ctx); err != nil {
		logger.Warnf("bookmark sync unavailable: %v", err)
	}
	return manager, nil
}
