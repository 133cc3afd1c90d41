// Package app wires one kvstems invocation together: configuration,
// logging, metrics, the browser and the site session.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/logger"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/harun/kvstems/internal/stats"
	"github.com/harun/kvstems/pkg/auth"
	"github.com/harun/kvstems/pkg/automation"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/harun/kvstems/pkg/catalog"
	"github.com/harun/kvstems/pkg/download"
	"github.com/harun/kvstems/pkg/perf"
	"github.com/harun/kvstems/pkg/session"
	"github.com/harun/kvstems/pkg/songs"
	"github.com/rs/zerolog"
)

// Report files written under the logs directory
const (
	StatsFile   = "automation_stats.json"
	MetricsFile = "automation_metrics.prom"
)

// Overrides are command-line settings applied on top of the loaded config
type Overrides struct {
	LogLevel string
	Debug    bool
	Out      io.Writer
}

// Setup loads and validates the configuration and creates the logger. The
// account password is registered with the redactor before anything is logged.
func Setup(configPath string, o Overrides) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.Debug {
		cfg.Logging.Level = "debug"
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, nil, fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: true,
		Out:       o.Out,
	})
	if err != nil {
		return nil, nil, err
	}
	log.Redact(cfg.Site.Password)

	return cfg, log, nil
}

// App owns the browser and everything that drives it
type App struct {
	Config  *config.Config
	Metrics *metrics.Metrics

	log      *logger.Logger
	logger   zerolog.Logger
	launcher *browser.Launcher
	page     browser.Page
	store    *session.Store
}

// New launches the browser. Downloads are routed to the download folder.
// A launch failure is fatal.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	downloadDir, err := filepath.Abs(cfg.DownloadFolder)
	if err != nil {
		return nil, fmt.Errorf("invalid download folder: %w", err)
	}

	opts := cfg.Browser.Launch
	opts.DownloadDir = downloadDir

	launcher := browser.NewLauncher(opts, log.GetZerolog())
	page, err := launcher.Launch(ctx)
	if err != nil {
		launcher.Close()
		return nil, err
	}

	a := newApp(cfg, log, page)
	a.launcher = launcher
	return a, nil
}

func newApp(cfg *config.Config, log *logger.Logger, page browser.Page) *App {
	zl := log.GetZerolog()
	return &App{
		Config:  cfg,
		Metrics: metrics.NewMetrics(),
		log:     log,
		logger:  zl.With().Str("component", "app").Logger(),
		page:    page,
		store:   session.NewStore(cfg.Session.Path, cfg.Session.TTL, zl),
	}
}

// Page returns the working page
func (a *App) Page() browser.Page {
	return a.page
}

// ClearSession deletes the saved session snapshot
func (a *App) ClearSession() error {
	return a.store.Clear()
}

// Login restores the saved session or signs in through the form
func (a *App) Login(ctx context.Context, force bool) error {
	authenticator := auth.New(a.page, auth.Options{
		Site:      a.Config.Site,
		Selectors: a.Config.Selectors,
		Timing:    a.Config.Timing,
		Store:     a.store,
		Metrics:   a.Metrics,
		Logger:    a.log.GetZerolog(),
	})
	if err := authenticator.EnsureLoggedIn(ctx, force); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	return nil
}

// Runner creates the automation runner for the configured timing
func (a *App) Runner() *automation.Runner {
	cfg := a.Config
	return automation.New(a.page, automation.Options{
		DownloadFolder:      cfg.DownloadFolder,
		Extensions:          cfg.Download.Extensions,
		NameLengthThreshold: cfg.Download.NameLengthThreshold,
		MaxTracks:           cfg.Automation.MaxTracks,
		TagID3:              cfg.Download.TagID3,
		WatchDownloads:      true,
		Selectors:           cfg.Selectors,
		Security:            cfg.Browser.Security,
		Timing:              cfg.Timing,
		Metrics:             a.Metrics,
		Logger:              a.log.GetZerolog(),
	})
}

// Run processes list with baseline's timing and writes the stats and
// metrics files. The report is returned even when the run failed.
func (a *App) Run(ctx context.Context, list []songs.Song, baseline perf.Baseline) (stats.Report, error) {
	return a.run(ctx, a.Runner().WithTiming(baseline.Name, baseline.Timing), list)
}

// RunBaseline is Run for the perf harness. Each baseline run files its
// stems under its own folder so runs over the same songs never collide.
func (a *App) RunBaseline(ctx context.Context, list []songs.Song, baseline perf.Baseline) (stats.Report, error) {
	out := a.BaselineFolder(baseline.Name, time.Now())
	a.logger.Info().Str("baseline", baseline.Name).Str("folder", out).Msg("Baseline output folder")
	return a.run(ctx, a.Runner().WithTiming(baseline.Name, baseline.Timing).WithOutputFolder(out), list)
}

// BaselineFolder is where a baseline run started at t files its songs
func (a *App) BaselineFolder(name string, t time.Time) string {
	return filepath.Join(a.Config.DownloadFolder, "perf", name+"_"+t.Format("20060102-150405"))
}

func (a *App) run(ctx context.Context, runner *automation.Runner, list []songs.Song) (stats.Report, error) {
	report, runErr := runner.Run(ctx, list)

	if err := a.WriteReports(report); err != nil {
		a.logger.Error().Err(err).Msg("Failed to write reports")
	}
	return report, runErr
}

// WriteReports writes the stats JSON and the metrics textfile
func (a *App) WriteReports(report stats.Report) error {
	dir := a.Config.LogsDir
	statsPath := filepath.Join(dir, StatsFile)
	if err := report.WriteJSON(statsPath); err != nil {
		return err
	}
	metricsPath := filepath.Join(dir, MetricsFile)
	if err := a.Metrics.WriteTextfile(metricsPath); err != nil {
		return err
	}
	a.logger.Info().Str("stats", statsPath).Str("metrics", metricsPath).Msg("Reports written")
	return nil
}

// Harness creates the perf harness writing under the logs directory
func (a *App) Harness(out io.Writer) *perf.Harness {
	return perf.NewHarness(a.Config.LogsDir, a.Config.Timing, out, a.log.GetZerolog())
}

// Converter creates a CSV converter searching through the browser
func (a *App) Converter() *catalog.Converter {
	searcher := catalog.NewPageSearcher(a.page, catalog.SearcherOptions{
		URLTemplate:  a.Config.Site.SearchURL,
		Selectors:    a.Config.Selectors,
		PollInterval: a.Config.Timing.PollInterval,
	})
	return catalog.NewConverter(searcher, a.log.GetZerolog())
}

// RemovePartials deletes leftover .crdownload files from the download root
func (a *App) RemovePartials() {
	n, err := download.RemovePartials(a.Config.DownloadFolder)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to remove partial downloads")
		return
	}
	if n > 0 {
		a.logger.Info().Int("removed", n).Msg("Removed partial downloads")
	}
}

// Close shuts the browser down
func (a *App) Close() error {
	if a.launcher == nil {
		return nil
	}
	return a.launcher.Close()
}

// Shutdown closes the browser and, after an interrupted run, clears the
// partial downloads it can no longer write to
func (a *App) Shutdown(interrupted bool) error {
	err := a.Close()
	if interrupted {
		a.RemovePartials()
	}
	return err
}
