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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mikeyhost/homedash/internal/api"
	"github.com/mikeyhost/homedash/internal/auth"
	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/logging"
	"github.com/mikeyhost/homedash/pkg/tlsutil"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:     "homedash",
	Short:   "homedash - self-hosted homelab dashboard",
	Long:    `homedash serves a status dashboard for homelab services, news feeds and bookmarks`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(hashPasswordCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "homedash %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Fprintf(out, "Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Fprintf(out, "Commit: %s\n", GitCommit)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() error {
	// Baseline logger for startup; replaced once config is loaded.
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "homedash",
	})

	loader := config.NewLoader()
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	initLogging(cfg)
	tlsutil.SetDNSCacheTTL(cfg.Server.DNSCacheTTL)

	log.Info().Str("version", Version).Str("data_dir", cfg.DataDir).Msg("Starting homedash")

	sessions, err := auth.NewManager(cfg.Auth)
	if err != nil {
		return fmt.Errorf("initialize auth: %w", err)
	}

	store := config.NewStore(cfg)
	router := api.NewRouter(api.Options{
		Store:    store,
		Sessions: sessions,
		Version:  Version,
	})
	defer router.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Server.MetricsPort > 0 {
		startMetricsServer(ctx, fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort))
	}

	configWatcher, err := config.NewWatcher(loader, store)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create config watcher, .env changes will require restart")
	} else {
		configWatcher.OnReload(func(old, updated *config.Config) {
			if err := sessions.Reload(updated.Auth); err != nil {
				log.Error().Err(err).Msg("Failed to apply auth settings")
			}
			if old.Logging != updated.Logging {
				initLogging(updated)
			}
			if old.Server.Addr() != updated.Server.Addr() || old.Server.MetricsPort != updated.Server.MetricsPort {
				log.Warn().Msg("Listener settings changed; restart homedash to apply them")
			}
		})
		if err := configWatcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start config watcher")
		}
		defer configWatcher.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// Status checks can take several upstream timeouts.
		WriteTimeout: 2*cfg.Server.UpstreamTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	reloadChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	signal.Notify(reloadChan, syscall.SIGHUP)
	defer signal.Stop(sigChan)
	defer signal.Stop(reloadChan)

	for running := true; running; {
		select {
		case <-reloadChan:
			log.Info().Msg("Received SIGHUP, reloading configuration...")
			if configWatcher != nil {
				_ = configWatcher.Reload()
			}
		case err := <-serverErr:
			return fmt.Errorf("http server: %w", err)
		case <-sigChan:
			log.Info().Msg("Shutting down server...")
			running = false
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Server stopped")
	return nil
}

func initLogging(cfg *config.Config) {
	logging.Init(logging.Config{
		Format:    cfg.Logging.Format,
		Level:     cfg.Logging.Level,
		Component: "homedash",
	})
}
