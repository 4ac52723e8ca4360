package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tasklenslab/tasklens/internal/analyze"
	"github.com/tasklenslab/tasklens/internal/config"
	"github.com/tasklenslab/tasklens/internal/index"
	"github.com/tasklenslab/tasklens/internal/ingest"
	"github.com/tasklenslab/tasklens/internal/logging"
	"github.com/tasklenslab/tasklens/internal/notion"
	"github.com/tasklenslab/tasklens/internal/report"
	"github.com/tasklenslab/tasklens/internal/server"
	"github.com/tasklenslab/tasklens/internal/store"
	"go.uber.org/zap"
)

var (
	cfgFile       string
	reportPeriod  string
	reportStart   string
	reportEnd     string
	includeUncat  bool
	filterTagList []string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tasklens",
		Short: "Mirror, analyze, and report on a remote task database",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(
		newSyncCommand(),
		newAnalyzeCommand(),
		newReportCommand(),
		newServeCommand(),
		newAllCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("api-token", "", "API integration token (overrides env)")
	cmd.PersistentFlags().String("database-id", defaults.GetString("api.database_id"), "Remote database identifier")
	cmd.PersistentFlags().String("api-base-url", defaults.GetString("api.base_url"), "Remote API base URL")
	cmd.PersistentFlags().String("data-dir", defaults.GetString("data.dir"), "Local data directory")
	cmd.PersistentFlags().Int("fetch-limit", defaults.GetInt("sync.fetch_limit"), "Maximum pages to list per sync (0 = all)")
	cmd.PersistentFlags().Duration("freshness-window", defaults.GetDuration("sync.freshness_window"), "Treat timestamps within this window as unchanged")
	cmd.PersistentFlags().String("serve-address", defaults.GetString("serve.address"), "Dashboard listen address")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "api.token", "api-token")
	bindFlag(cmd, "api.database_id", "database-id")
	bindFlag(cmd, "api.base_url", "api-base-url")
	bindFlag(cmd, "data.dir", "data-dir")
	bindFlag(cmd, "sync.fetch_limit", "fetch-limit")
	bindFlag(cmd, "sync.freshness_window", "freshness-window")
	bindFlag(cmd, "serve.address", "serve-address")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull remote changes into the local cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runSync)
		},
	}
}

func newAnalyzeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Write the analysis digest and charts from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runAnalyze)
		},
	}
	cmd.Flags().StringSliceVar(&filterTagList, "tags", nil, "Restrict analysis to tasks carrying any of these tags")
	cmd.Flags().BoolVar(&includeUncat, "include-uncategorized", false, "Include tasks with unrecognized statuses")
	return cmd
}

func newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compose a PDF status report from the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runReport)
		},
	}
	cmd.Flags().StringVar(&reportPeriod, "period", "weekly", "Report period (daily, weekly, biweekly, monthly, yearly, custom)")
	cmd.Flags().StringVar(&reportStart, "start", "", "Custom period start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reportEnd, "end", "", "Custom period end date (YYYY-MM-DD)")
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the local dashboard and API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), runServe)
		},
	}
}

func newAllCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Sync, then analyze, then compose the weekly report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, app *application) error {
				if err := runSync(ctx, app); err != nil {
					return err
				}
				if err := runAnalyze(ctx, app); err != nil {
					return err
				}
				return runReport(ctx, app)
			})
		},
	}
}

// application bundles the configured dependencies shared by the subcommands.
type application struct {
	config config.AppConfig
	logger *zap.Logger
	store  *store.Store
}

func withApp(ctx context.Context, run func(context.Context, *application) error) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewConsoleLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cacheStore, err := store.NewStore(store.StoreConfig{
		Path:     appConfig.CachePath,
		JSONPath: appConfig.JSONMirrorPath,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &application{config: appConfig, logger: logger, store: cacheStore}
	if err := run(signalCtx, app); err != nil {
		logger.Error("command failed", zap.Error(err))
		return err
	}
	return nil
}

func runSync(ctx context.Context, app *application) error {
	if err := os.MkdirAll(app.config.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	client, err := notion.NewClient(notion.ClientConfig{
		Token:   app.config.APIToken,
		BaseURL: app.config.APIBaseURL,
		Logger:  app.logger,
	})
	if err != nil {
		return err
	}

	resolver, err := ingest.NewResolver(ingest.ResolverConfig{
		Client:      client,
		NIDProperty: app.config.Properties.NID,
		Logger:      app.logger,
	})
	if err != nil {
		return err
	}

	fetcher, err := ingest.NewFetcher(ingest.FetcherConfig{
		Client:  client,
		BaseDir: app.config.AttachmentDir,
		Logger:  app.logger,
	})
	if err != nil {
		return err
	}

	assembler, err := ingest.NewAssembler(ingest.AssemblerConfig{
		Client:     client,
		Resolver:   resolver,
		Fetcher:    fetcher,
		Properties: app.config.Properties,
		Logger:     app.logger,
	})
	if err != nil {
		return err
	}

	taskIndex, err := index.Open(app.config.IndexDBPath, app.logger)
	if err != nil {
		return err
	}
	defer taskIndex.Close() //nolint:errcheck

	pipeline, err := ingest.NewPipeline(ingest.PipelineConfig{
		Client:          client,
		Assembler:       assembler,
		Store:           app.store,
		Index:           taskIndex,
		DatabaseID:      app.config.DatabaseID,
		FetchLimit:      app.config.FetchLimit,
		FreshnessWindow: app.config.FreshnessWindow,
		Properties:      app.config.Properties,
		Logger:          app.logger,
	})
	if err != nil {
		return err
	}

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return err
	}
	app.logger.Info("sync finished",
		zap.Int("listed", summary.Listed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("updated", summary.Updated),
		zap.Int("cache_size", summary.CacheSize))
	return nil
}

func runAnalyze(ctx context.Context, app *application) error {
	records, err := app.store.Load()
	if err != nil {
		return err
	}

	tags := filterTagList
	if len(tags) == 0 {
		tags = app.config.Report.FilterTags
	}
	analyzer := analyze.NewAnalyzer(analyze.AnalyzerConfig{
		FilterTags:           tags,
		IncludeUncategorized: includeUncat || app.config.Report.IncludeUncategorized,
		Logger:               app.logger,
	})
	return analyzer.Run(records, time.Now(), app.config.AnalysisDir)
}

func runReport(ctx context.Context, app *application) error {
	period, err := report.ParsePeriod(reportPeriod)
	if err != nil {
		return err
	}
	var start, end time.Time
	if reportStart != "" {
		if start, err = time.Parse("2006-01-02", reportStart); err != nil {
			return fmt.Errorf("parse start date: %w", err)
		}
	}
	if reportEnd != "" {
		if end, err = time.Parse("2006-01-02", reportEnd); err != nil {
			return fmt.Errorf("parse end date: %w", err)
		}
	}
	if reportStart != "" && reportEnd != "" {
		period = report.PeriodCustom
	}

	tagSuffix := ""
	if len(app.config.Report.FilterTags) > 0 {
		tagSuffix = app.config.Report.FilterTags[0]
	}
	window, err := report.ResolveWindow(period, start, end, time.Now(), tagSuffix)
	if err != nil {
		return err
	}

	records, err := app.store.Load()
	if err != nil {
		return err
	}

	renderer, err := report.NewChromeRenderer()
	if err != nil {
		return err
	}
	composer, err := report.NewComposer(report.ComposerConfig{
		AttachmentDir: app.config.AttachmentDir,
		ReportsDir:    app.config.ReportsDir,
		Options:       app.config.Report,
		Renderer:      renderer,
		Logger:        app.logger,
	})
	if err != nil {
		return err
	}

	path, err := composer.Compose(ctx, records, window)
	if err != nil {
		return err
	}
	app.logger.Info("report ready", zap.String("path", path))
	return nil
}

func runServe(ctx context.Context, app *application) error {
	taskIndex, err := index.Open(app.config.IndexDBPath, app.logger)
	if err != nil {
		return err
	}
	defer taskIndex.Close() //nolint:errcheck

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Index: taskIndex,
		Digest: &liveDigest{
			store: app.store,
			analyzer: analyze.NewAnalyzer(analyze.AnalyzerConfig{
				FilterTags:           app.config.Report.FilterTags,
				IncludeUncategorized: app.config.Report.IncludeUncategorized,
				Logger:               app.logger,
			}),
		},
		AnalysisDir:   app.config.AnalysisDir,
		ReportsDir:    app.config.ReportsDir,
		AttachmentDir: app.config.AttachmentDir,
		Logger:        app.logger,
	})
	if err != nil {
		return err
	}

	return server.Serve(ctx, app.config.ServeAddress, handler, app.logger)
}

// liveDigest renders the digest from the current cache on each request.
type liveDigest struct {
	store    *store.Store
	analyzer *analyze.Analyzer
}

func (d *liveDigest) CurrentDigest(ctx context.Context) (string, error) {
	records, err := d.store.Load()
	if err != nil {
		return "", err
	}
	return d.analyzer.Digest(records, time.Now())
}
