package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitegauge/sitegauge/internal/audit"
	"github.com/sitegauge/sitegauge/internal/browser"
	"github.com/sitegauge/sitegauge/internal/config"
	"github.com/sitegauge/sitegauge/internal/crawl"
	"github.com/sitegauge/sitegauge/internal/logging"
	"github.com/sitegauge/sitegauge/internal/metrics"
	"github.com/sitegauge/sitegauge/internal/probe"
	"github.com/sitegauge/sitegauge/internal/server"
)

// newAuditCmd creates the 'audit' subcommand, which runs one full crawl.
func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Crawl the configured site and audit every visited page",
		Long: `Starts a bounded crawl at the configured entry URL. Each visited
page is audited by the full probe set and its detail record, summary and
performance report are written to the output directory.`,
		RunE: runAuditCommand,
	}
	return cmd
}

func runAuditCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cfg.Server.Enabled {
		debug := server.New(cfg.Server.Port, logger.Named("server"))
		debug.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := debug.Shutdown(shutdownCtx); err != nil {
				logger.Warn("debug server shutdown failed", zap.Error(err))
			}
		}()
	}

	return runCrawl(ctx, cfg, logger)
}

// runCrawl owns the browser lifecycle and invokes the crawler once at the
// entry URL. Browser launch failure is the only failure that escapes; every
// page-level problem degrades into markers inside the persisted records.
func runCrawl(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	b, err := browser.New(browser.Config{
		Headless:   cfg.Browser.Headless,
		UserAgent:  cfg.Crawl.UserAgent,
		NavTimeout: cfg.NavTimeout(),
	}, logger.Named("browser"))
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}
	defer b.Close()

	session, closeSession, err := b.NewSession()
	if err != nil {
		return fmt.Errorf("open page session: %w", err)
	}
	defer closeSession()

	sink, err := audit.NewFileSystemSink(cfg.Output.BaseDir, logger.Named("sink"))
	if err != nil {
		return fmt.Errorf("init sink: %w", err)
	}

	runID := uuid.NewString()
	auditor := buildAuditor(runID, cfg, session, sink, logger)
	crawler := crawl.New(crawl.Config{
		MaxPages: cfg.Crawl.MaxPages,
		MaxDepth: cfg.Crawl.MaxDepth,
		Delay:    cfg.RequestDelay(),
	}, session, auditor, logger.Named("crawler"))

	started := time.Now().UTC()
	logger.Info("crawl starting",
		zap.String("run_id", runID),
		zap.String("entry_url", cfg.Crawl.StartURL),
		zap.Int("max_pages", cfg.Crawl.MaxPages),
		zap.Int("max_depth", cfg.Crawl.MaxDepth),
	)

	records, err := crawler.Run(ctx, cfg.Crawl.StartURL)
	if err != nil {
		return fmt.Errorf("run crawl: %w", err)
	}

	manifest := buildManifest(runID, cfg.Crawl.StartURL, started, records)
	if _, err := sink.SaveManifest(manifest); err != nil {
		logger.Error("write run manifest failed", zap.Error(err))
	}

	logger.Info("run complete",
		zap.Int("pages", manifest.Pages),
		zap.Int("mean_overall", manifest.MeanOverall),
	)
	return nil
}

func buildAuditor(runID string, cfg config.Config, session *browser.Session, sink *audit.FileSystemSink, logger *zap.Logger) *audit.Auditor {
	axe := probe.NewAxe(probe.AxeConfig{
		ScriptPath:    cfg.Probes.AxeScriptPath,
		CDNURL:        cfg.Probes.AxeCDNURL,
		MaxViolations: cfg.Probes.MaxViolations,
	}, logger.Named("axe"))
	validator := probe.NewValidator(probe.ValidatorConfig{
		URL:         cfg.Probes.ValidatorURL,
		FallbackURL: cfg.Probes.ValidatorFallbackURL,
	}, logger.Named("htmlval"))
	cssStats := probe.NewCSSStats(probe.CSSStatsConfig{
		MaxBytes: cfg.Probes.CSSMaxBytes,
	}, logger.Named("css"))
	vitals := probe.NewVitals(probe.VitalsConfig{
		Window: time.Duration(cfg.Probes.VitalsWindowSecs) * time.Second,
	}, logger.Named("vitals"))
	carbon := probe.NewCarbon(probe.CarbonConfig{
		Endpoint: cfg.Probes.CarbonEndpoint,
		Delay:    time.Duration(cfg.Probes.CarbonDelaySecs) * time.Second,
	}, logger.Named("carbon"))

	probes := audit.ProbeSet{
		Axe: func(ctx context.Context, page audit.Page) *audit.AxeResult {
			return axe.Run(ctx, page)
		},
		HTML: func(ctx context.Context, html string) *audit.HTMLResult {
			return validator.Run(ctx, html)
		},
		CSS: func(ctx context.Context, page audit.Page) *audit.CSSResult {
			return cssStats.Run(ctx, page)
		},
		Vitals: func(ctx context.Context, page audit.Page) *audit.VitalsResult {
			return vitals.Run(ctx, page)
		},
		Carbon: func(ctx context.Context, url string) *audit.CarbonResult {
			return carbon.Run(ctx, url)
		},
	}

	reporter := browser.NewPerfReporter(session, logger.Named("perf"))
	return audit.New(runID, audit.Config{InterProbePause: time.Second}, probes, session, reporter, sink, logger.Named("auditor"))
}

func buildManifest(runID, entryURL string, started time.Time, records []audit.PageRecord) audit.RunManifest {
	manifest := audit.RunManifest{
		RunID:    runID,
		EntryURL: entryURL,
		Started:  started,
		Finished: time.Now().UTC(),
		Pages:    len(records),
	}
	if len(records) > 0 {
		var sum int
		for _, rec := range records {
			sum += rec.Scores.Overall
		}
		manifest.MeanOverall = (sum + len(records)/2) / len(records)
	}
	return manifest
}
