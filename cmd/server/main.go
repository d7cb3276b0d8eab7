package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/biscicol/bcid/internal/api"
	"github.com/biscicol/bcid/internal/metrics"
	"github.com/biscicol/bcid/internal/minter"
	"github.com/biscicol/bcid/internal/registrar"
	"github.com/biscicol/bcid/internal/storage"
	"github.com/biscicol/bcid/pkg/config"
)

var (
	configFile string
	httpAddr   string
	dbPath     string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "bcid-server",
	Short: "BCID Server - persistent identifier minting and resolution",
	Long: `BCID Server mints persistent identifiers for biological collection
research artifacts, resolves them, and registers them with an
external identifier service.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("bcid-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "SQLite database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.Address = httpAddr
	}
	if dbPath != "" {
		cfg.Storage.Path = dbPath
	}
	cfg.Verbose = verbose

	// Secrets come from the environment, never the config file.
	jwtSecret := os.Getenv("BCID_JWT_SECRET")
	if jwtSecret == "" {
		return fmt.Errorf("BCID_JWT_SECRET environment variable is required")
	}

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Storage.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Storage.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	// Create default admin user on first run
	if err := store.EnsureAdminUser(); err != nil {
		return fmt.Errorf("ensure admin user: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Storage.Path)

	// Outbound registration pipeline
	var events minter.RegistrationQueue
	var dispatcher *registrar.Dispatcher
	if cfg.EZID.Enabled {
		password := os.Getenv("BCID_EZID_PASSWORD")
		if password == "" {
			return fmt.Errorf("BCID_EZID_PASSWORD environment variable is required when ezid is enabled")
		}

		client, err := registrar.NewEZIDClient(registrar.EZIDConfig{
			BaseURL:  cfg.EZID.BaseURL,
			Username: cfg.EZID.Username,
			Password: password,
			Timeout:  cfg.EZIDTimeout(),
		})
		if err != nil {
			return fmt.Errorf("create ezid client: %w", err)
		}

		dispatcher = registrar.NewDispatcher(client, cfg.EZID.QueueSize, cfg.EZIDTimeout())
		dispatcher.Start()
		events = dispatcher
		log.Printf("ezid registration enabled (endpoint %s)", cfg.EZID.BaseURL)
	} else {
		log.Printf("ezid registration disabled")
	}

	// Minting layer
	projectMinter := minter.NewProjectMinter(store)
	expeditionMinter := minter.NewExpeditionMinter(store, events, minter.ExpeditionConfig{
		IdentifierPrefix: cfg.Identifier.Prefix,
		ResolverBase:     cfg.Identifier.ResolverBase,
	})
	resolver := minter.NewResolver(store)

	// HTTP API server
	apiServer, err := api.New(&api.Config{
		Address:        cfg.Server.Address,
		JWTSecret:      []byte(jwtSecret),
		AccessTokenTTL: cfg.AccessTokenTTL(),
		RateLimitPerIP: cfg.Auth.LoginRateLimit,
		Verbose:        cfg.Verbose,
	}, store, projectMinter, expeditionMinter, resolver)
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	metricsServer := metrics.NewServer(cfg.Server.MetricsAddress)

	// Setup signal handling
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("starting bcid-server %s", config.Version)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return apiServer.Run(ctx)
	})

	g.Go(func() error {
		return metricsServer.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	// Drain pending registrations before exit.
	if dispatcher != nil {
		dispatcher.Stop()
	}

	if err != nil && err != context.Canceled {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
