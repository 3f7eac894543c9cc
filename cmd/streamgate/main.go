// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/streamgate/streamgate/internal/api"
	"github.com/streamgate/streamgate/internal/buildinfo"
	"github.com/streamgate/streamgate/internal/config"
	"github.com/streamgate/streamgate/internal/debrid"
	"github.com/streamgate/streamgate/internal/domain"
	"github.com/streamgate/streamgate/internal/metrics"
	"github.com/streamgate/streamgate/internal/ranking"
	"github.com/streamgate/streamgate/internal/search"
)

func main() {
	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "streamgate",
		Short: "Multi-source stream resolution and caching engine",
		Long: `streamgate - search torrent/stream sources concurrently, parse and
rank the results, and drive the debrid cache lifecycle to playable URLs.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.Version))
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
		pprofFlag bool
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/streamgate/). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")
	command.Flags().BoolVar(&pprofFlag, "pprof", false, "enable pprof server on :6060")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, logPath, pprofFlag)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of streamgate",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/streamgate/config.toml
- Windows: %APPDATA%\streamgate\config.toml

You can specify either a directory path or a direct file path:
- Directory: streamgate generate-config --config-dir /path/to/config/
- File: streamgate generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	configDir string
	logPath   string
	pprofFlag bool
}

func NewApplication(configDir, logPath string, pprofFlag bool) *Application {
	return &Application{
		configDir: configDir,
		logPath:   logPath,
		pprofFlag: pprofFlag,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	// Override with CLI flags if provided
	if app.logPath != "" {
		os.Setenv("STREAMGATE__LOG_PATH", app.logPath)
		cfg.Config.LogPath = app.logPath
	}
	if app.pprofFlag {
		cfg.Config.PprofEnabled = true
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting streamgate")

	searchService := buildSearchService(cfg.Config)
	rankingEngine := ranking.NewEngine(unlimitedSourceNames(cfg.Config.Sources))

	debridClient := debrid.NewClient(cfg.Config.Debrid.BaseURL, cfg.Config.Debrid.APIKey, nil)
	resolver := debrid.NewResolver(debridClient, debrid.NewRegistry())
	lifecycle := debrid.NewLifecycle(resolver, nil)

	// Rebuild lifecycle state from the account library; in-memory state
	// loss on restart is safe because the library listing is authoritative.
	if cfg.Config.Debrid.APIKey != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if _, err := resolver.Rehydrate(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to rehydrate cache state from debrid library")
			}
		}()
	} else {
		log.Warn().Msg("No debrid API key configured - cache operations will fail until one is set")
	}

	httpServer := api.NewServer(&api.Dependencies{
		Config:        cfg,
		Version:       buildinfo.Version,
		SearchService: searchService,
		RankingEngine: rankingEngine,
		Resolver:      resolver,
		Lifecycle:     lifecycle,
	})

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	if cfg.Config.MetricsEnabled {
		go func() {
			metricsServer := metrics.NewServer(cfg.Config.MetricsHost, cfg.Config.MetricsPort)
			errorChannel <- metricsServer.ListenAndServe()
		}()
	}

	if cfg.Config.PprofEnabled {
		go func() {
			log.Info().Msg("Starting pprof server on :6060")
			log.Info().Msg("Access profiling at: http://localhost:6060/debug/pprof/")
			if err := http.ListenAndServe(":6060", nil); err != nil {
				log.Error().Err(err).Msg("Profiling server failed")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")
		os.Exit(1)
	}

	os.Exit(0)
}

// buildSearchService turns the configured source list into live sources.
func buildSearchService(conf *domain.Config) *search.Service {
	var sources []search.Source
	for _, sc := range conf.Sources {
		if !sc.Enabled {
			log.Debug().Str("source", sc.Name).Msg("Skipping disabled source")
			continue
		}

		timeout := time.Duration(sc.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = search.DefaultSourceTimeout
		}
		client := &http.Client{Timeout: timeout}

		switch strings.ToLower(sc.Type) {
		case "torznab":
			sources = append(sources, search.NewTorznabSource(sc.Name, sc.URL, sc.APIKey, client))
		case "addon", "":
			sources = append(sources, search.NewAddonSource(sc.Name, sc.URL, sc.CachedOnly, client))
		default:
			log.Warn().Str("source", sc.Name).Str("type", sc.Type).Msg("Unknown source type, skipping")
		}
	}

	if len(sources) == 0 {
		log.Warn().Msg("No sources configured - searches will fail until sources are added to the config")
	}

	opts := []search.Option{}
	if conf.SearchCacheTTLMinutes > 0 {
		opts = append(opts, search.WithResponseCacheTTL(time.Duration(conf.SearchCacheTTLMinutes)*time.Minute))
	}

	return search.NewService(sources, opts...)
}

func unlimitedSourceNames(sources []domain.SourceConfig) []string {
	var names []string
	for _, sc := range sources {
		// Torznab indexers are unbounded by nature; others opt in via config.
		if sc.Unlimited || strings.EqualFold(sc.Type, "torznab") {
			names = append(names, sc.Name)
		}
	}
	return names
}
