package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/aims-ereefs/thredds-mirror/config"
	"github.com/aims-ereefs/thredds-mirror/definition"
	"github.com/aims-ereefs/thredds-mirror/integrity"
	"github.com/aims-ereefs/thredds-mirror/metadatastore"
	"github.com/aims-ereefs/thredds-mirror/metadatastore/postgres"
	"github.com/aims-ereefs/thredds-mirror/metadatastore/rediscache"
	"github.com/aims-ereefs/thredds-mirror/metadatastore/sqlite"
	"github.com/aims-ereefs/thredds-mirror/notify"
	"github.com/aims-ereefs/thredds-mirror/obslog"
	"github.com/aims-ereefs/thredds-mirror/publish"
	"github.com/aims-ereefs/thredds-mirror/reconcile"
	"github.com/aims-ereefs/thredds-mirror/transport"
)

var rootCmd = &cobra.Command{
	Use:   "thredds-mirror",
	Short: "THREDDS catalogue mirroring ingestion worker",
	Long: `thredds-mirror walks one or more download definitions, mirrors the
datasets their THREDDS catalogues advertise into a durable sink, and keeps
a metadata index consistent with the upstream catalogues.`,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one reconciliation pass over the configured definitions",
	Long:  "Run the reconciliation engine once over every enabled definition (or a single one, via --definition-id) and exit",
	RunE:  runReconcile,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  "Validate the worker's configuration and display the loaded settings",
	RunE:  validateConfig,
}

var (
	configFilePath  string
	definitionsDir  string
	flagDryRun      bool
	flagLimit       int
	flagDefinition  string
	flagFiles       []string
)

func main() {
	runCmd.Flags().StringVarP(&configFilePath, "config", "c", "", "Path to configuration file")
	runCmd.Flags().StringVar(&definitionsDir, "definitions-dir", "./definitions", "Directory of *.json DownloadDefinition files")
	runCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Log intended transfers without fetching or publishing")
	runCmd.Flags().IntVar(&flagLimit, "limit", 0, "Cap on successful downloads per definition (0 = use configured default)")
	runCmd.Flags().StringVar(&flagDefinition, "definition-id", "", "Restrict the run to a single definition, including disabled ones")
	runCmd.Flags().StringSliceVar(&flagFiles, "files", nil, "Override the definition's filename filter (only with --definition-id)")

	configCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd, configCmd)

	// Default to "run" when no subcommand is given, mirroring the
	// teacher's "default to server" convention.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "run")
	}

	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

// runReconcile wires every collaborator and drives one reconciliation pass
// over the configured definitions, per spec.md §2's control flow.
func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		cancel()
	}()

	cfg, err := config.LoadConfigFromFile(configFilePath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	applyRunFlags(&cfg)

	logger, err := obslog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		if err := logger.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to sync logger: %v\n", err)
		}
	}()

	logger.Info("starting reconciliation run",
		zap.String("definitionsDir", definitionsDir),
		zap.Bool("dryRun", cfg.Run.DryRun),
		zap.Int("limit", cfg.Run.Limit))

	metricsSrv := startMetricsServer(cfg.Metrics.ListenAddr, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	store, err := buildMetadataStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize metadata store: %w", err)
	}
	defer store.Close()

	awsSession, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Notification.Region)})
	if err != nil {
		return fmt.Errorf("initialize AWS session: %w", err)
	}

	fetchTimeout, err := time.ParseDuration(cfg.Backend.CatalogueFetchTimeout)
	if err != nil {
		fetchTimeout = 5 * time.Minute
	}

	fetcher := transport.NewFetcher(&http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Backend.HTTPInsecureSkipVerify}, //nolint:gosec
		},
		// No overall Timeout here: transport.Fetcher streams a single
		// large object and relies on context cancellation, not a fixed
		// deadline, per spec.md §5's cancellation model.
	})
	extractor := integrity.NewChecksumExtractor()
	dispatcher := publish.NewDispatcher(awsSession)
	notifier := notify.New(awsSession, notify.Channels{
		DownloadComplete: cfg.Notification.DownloadCompleteTopicARN,
		FinalAggregate:   cfg.Notification.FinalAggregateTopicARN,
		Administrative:   cfg.Notification.AdministrativeTopicARN,
	}, rate.NewLimiter(rate.Limit(5), 10), logger)

	engine := reconcile.NewEngine(fetcher, extractor, dispatcher, store, notifier, fetchTimeout, logger)

	defs, err := loadDefinitions(definitionsDir, cfg.Run)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	opts := reconcile.RunOptions{DryRun: cfg.Run.DryRun, Limit: cfg.Run.Limit}
	var summaries []notify.PerDefinitionSummary
	var ranAny bool
	definitionsRun := 0

	for _, def := range defs {
		if cfg.Run.DefinitionID == "" && !def.Enabled {
			continue
		}
		ranAny = true
		definitionsRun++
		out, err := engine.Run(ctx, def, opts)
		if err != nil {
			logger.Error("definition run failed", zap.String("definitionId", def.ID), zap.Error(err))
		}
		if !out.IsEmpty() {
			summaries = append(summaries, notify.PerDefinitionSummary{
				DefinitionID: def.ID,
				Successes:    len(out.Successes),
				Warnings:     len(out.Warnings),
				Errors:       len(out.Errors),
			})
		}
	}

	if len(summaries) > 0 {
		notifier.FinalAggregate(ctx, summaries)
	}

	if !ranAny {
		return fmt.Errorf("no definitions were run (definitions-dir=%s, definition-id=%q)", definitionsDir, cfg.Run.DefinitionID)
	}

	logger.Info("reconciliation run complete", zap.Int("definitionsRun", definitionsRun))
	return nil
}

// applyRunFlags layers CLI flags over the loaded config, mirroring the
// three-tier priority order documented in config.LoadConfigFromFile:
// flags here act as a fourth, highest-priority layer applied by cmd/,
// not by the config package itself.
func applyRunFlags(cfg *config.AppConfig) {
	if flagDryRun {
		cfg.Run.DryRun = true
	}
	if flagLimit != 0 {
		cfg.Run.Limit = flagLimit
	}
	if flagDefinition != "" {
		cfg.Run.DefinitionID = flagDefinition
	}
	if len(flagFiles) > 0 {
		cfg.Run.Files = flagFiles
	}
}

// loadDefinitions reads every definition from dir and, if run.DefinitionID
// is set, narrows the result to that one definition (applying run.Files as
// an override), per spec.md §6.
func loadDefinitions(dir string, run config.RunConfig) ([]*definition.Definition, error) {
	all, err := definition.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if run.DefinitionID == "" {
		return all, nil
	}
	for _, d := range all {
		if d.ID == run.DefinitionID {
			// An explicitly selected definition runs even if it is
			// disabled; Engine.Run only runs enabled definitions.
			d.Enabled = true
			if len(run.Files) > 0 {
				d.Files = run.Files
				d.FilenameRegexp = ""
			}
			return []*definition.Definition{d}, nil
		}
	}
	return nil, fmt.Errorf("no definition with id %q in %s", run.DefinitionID, dir)
}

// buildMetadataStore selects the configured backend and optionally wraps
// it in the Redis read-through cache, per spec.md §4.8.
func buildMetadataStore(cfg config.AppConfig, logger *zap.Logger) (metadatastore.Store, error) {
	var backing metadatastore.Store
	var err error

	switch cfg.MetadataStore.Type {
	case "postgres":
		if err := postgres.RunMigrations(cfg.MetadataStore.DSN); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		backing, err = postgres.New(cfg.MetadataStore.DSN, logger)
	case "sqlite":
		backing, err = sqlite.New(cfg.MetadataStore.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("unknown metadata_store.type %q", cfg.MetadataStore.Type)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.MetadataStore.CacheEnabled {
		return metadatastore.Instrument(backing), nil
	}

	ttl, err := time.ParseDuration(cfg.MetadataStore.CacheTTL)
	if err != nil {
		ttl = 5 * time.Minute
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.MetadataStore.RedisAddr,
		Password: cfg.MetadataStore.RedisPassword,
		DB:       cfg.MetadataStore.RedisDB,
	})
	cached := rediscache.New(backing, redisClient, cfg.MetadataStore.RedisKeyPrefix, ttl, logger)
	return metadatastore.Instrument(cached), nil
}

// startMetricsServer exposes /metrics for Prometheus scraping, ported
// from the teacher's MetricsConfig.ListenAddr convention.
func startMetricsServer(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server exited", zap.Error(err))
		}
	}()
	return srv
}

// validateConfig validates the worker's configuration and displays the
// loaded settings, ported from the teacher's validateCmd.
func validateConfig(cmd *cobra.Command, args []string) error {
	fmt.Println("Validating configuration...")

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("configuration validation failed: %v\n", err)
		return err
	}

	fmt.Println("configuration is valid")
	fmt.Printf("Metadata store: %s (%s)\n", cfg.MetadataStore.Type, obslog.MaskDSN(cfg.MetadataStore.DSN))
	if cfg.MetadataStore.CacheEnabled {
		fmt.Printf("Redis cache: %s\n", cfg.MetadataStore.RedisAddr)
	}
	fmt.Printf("Dry run default: %v\n", cfg.Run.DryRun)
	fmt.Printf("Limit default: %d\n", cfg.Run.Limit)
	if cfg.Notification.DownloadCompleteTopicARN != "" {
		fmt.Printf("Download-complete topic: %s\n", obslog.MaskARN(cfg.Notification.DownloadCompleteTopicARN))
	}

	return nil
}
