// Package automation works through the song list: one song at a time, one
// track at a time, soloing each track and collecting its download.
package automation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/harun/kvstems/internal/stats"
	"github.com/harun/kvstems/pkg/browser"
	"github.com/harun/kvstems/pkg/download"
	"github.com/harun/kvstems/pkg/mixer"
	"github.com/harun/kvstems/pkg/songs"
	"github.com/rs/zerolog"
)

// ErrNoSongsProcessed means no song produced a single downloaded track
var ErrNoSongsProcessed = errors.New("no songs processed")

// Song outcomes, also used as metric labels
const (
	SongProcessed = "processed"
	SongFailed    = "failed"
)

// Options configures a Runner
type Options struct {
	// DownloadFolder is where the browser saves downloads
	DownloadFolder string
	// OutputFolder holds the song folders, DownloadFolder when empty
	OutputFolder        string
	Extensions          []string
	NameLengthThreshold int
	MaxTracks           int
	TagID3              bool
	// WatchDownloads wakes the download poll loop on filesystem events
	WatchDownloads bool

	Selectors config.Selectors
	Security  browser.SecurityConfig
	Timing    config.Timing
	// Baseline names the timing set, recorded in the report
	Baseline string

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Runner drives the automation over one logged-in page
type Runner struct {
	page   browser.Page
	opts   Options
	urls   *browser.SecurityValidator
	logger zerolog.Logger
}

// New creates a runner
func New(page browser.Page, opts Options) *Runner {
	if opts.Baseline == "" {
		opts.Baseline = "default"
	}
	return &Runner{
		page:   page,
		opts:   opts,
		urls:   browser.NewSecurityValidator(opts.Security),
		logger: opts.Logger.With().Str("component", "automation").Logger(),
	}
}

// WithTiming returns a runner using the named timing set
func (r *Runner) WithTiming(baseline string, timing config.Timing) *Runner {
	opts := r.opts
	opts.Baseline = baseline
	opts.Timing = timing
	return New(r.page, opts)
}

// WithOutputFolder returns a runner filing stems into song folders under dir
func (r *Runner) WithOutputFolder(dir string) *Runner {
	opts := r.opts
	opts.OutputFolder = dir
	return New(r.page, opts)
}

func (r *Runner) outputFolder() string {
	if r.opts.OutputFolder != "" {
		return r.opts.OutputFolder
	}
	return r.opts.DownloadFolder
}

// Run processes every song and then runs the final cleanup pass over the
// download folder. The report is returned even when an error is.
func (r *Runner) Run(ctx context.Context, list []songs.Song) (stats.Report, error) {
	collector := stats.NewCollector(r.opts.Baseline)
	logger := r.logger.With().Str("run_id", collector.RunID()).Logger()

	detector := download.NewDetector(download.Options{
		Dir:                 r.opts.DownloadFolder,
		Extensions:          r.opts.Extensions,
		NameLengthThreshold: r.opts.NameLengthThreshold,
		Timing:              r.opts.Timing,
		Metrics:             r.opts.Metrics,
		Logger:              logger,
		Watch:               r.opts.WatchDownloads,
	})
	defer detector.Close()

	logger.Info().
		Int("songs", len(list)).
		Str("baseline", r.opts.Baseline).
		Int("max_tracks", r.opts.MaxTracks).
		Msg("Starting automation")

	for i, song := range list {
		if ctx.Err() != nil {
			break
		}
		logger.Info().Int("song", i+1).Int("of", len(list)).Str("name", song.Name).Msg("Processing song")

		rec := r.processSong(ctx, song, detector)
		collector.AddSong(rec)
		if rec.Processed() {
			r.opts.Metrics.ObserveSong(SongProcessed)
		} else {
			r.opts.Metrics.ObserveSong(SongFailed)
		}
	}

	if ctx.Err() == nil {
		if _, err := download.FinalCleanup(r.outputFolder(), r.opts.Extensions, r.opts.NameLengthThreshold, logger); err != nil {
			logger.Warn().Err(err).Msg("Final cleanup failed")
		}
	}

	report := collector.Report()
	logger.Info().
		Int("songs_processed", report.Totals.SongsProcessed).
		Int("downloads", report.Totals.DownloadsConfirmed).
		Float64("success_rate", report.Totals.SuccessRate).
		Msg("Automation finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("automation interrupted: %w", err)
	}
	if report.Totals.SongsProcessed == 0 {
		return report, ErrNoSongsProcessed
	}
	return report, nil
}

func (r *Runner) processSong(ctx context.Context, song songs.Song, detector *download.Detector) stats.SongRecord {
	start := time.Now()
	rec := stats.SongRecord{Name: song.Name, URL: song.URL, Key: song.Key}
	logger := r.logger.With().Str("song", song.Name).Logger()

	fail := func(err error, msg string) stats.SongRecord {
		logger.Error().Err(err).Msg(msg)
		rec.Error = err.Error()
		rec.Seconds = time.Since(start).Seconds()
		return rec
	}

	if err := r.urls.ValidateURL(song.URL); err != nil {
		return fail(err, "Song URL rejected")
	}
	if err := r.page.Navigate(ctx, song.URL); err != nil {
		return fail(err, "Failed to open song page")
	}

	mx := mixer.New(r.page, mixer.Options{
		Selectors: r.opts.Selectors,
		Timing:    r.opts.Timing,
		Metrics:   r.opts.Metrics,
		Logger:    logger,
	})

	found, err := mx.Discover(ctx)
	if err != nil {
		return fail(err, "Track discovery failed")
	}
	rec.TracksFound = len(found)
	tracks := mixer.Limit(found, r.opts.MaxTracks)
	if len(tracks) < len(found) {
		logger.Info().Int("found", len(found)).Int("processing", len(tracks)).Msg("Track limit applied")
	}

	if song.Key != 0 {
		if _, err := mx.AdjustKey(ctx, song.Key); err != nil {
			logger.Warn().Err(err).Int("key", song.Key).Msg("Key not adjusted, downloading in the original key")
		}
	}

	songDir := filepath.Join(r.outputFolder(), songs.FolderName(song))
	for i, track := range tracks {
		if ctx.Err() != nil {
			break
		}
		rec.Tracks = append(rec.Tracks, r.processTrack(ctx, mx, detector, song, track, len(found), songDir))

		if i < len(tracks)-1 {
			if err := browser.Sleep(ctx, r.opts.Timing.BetweenTracksDelay); err != nil {
				break
			}
		}
	}

	rec.Seconds = time.Since(start).Seconds()
	logger.Info().
		Bool("processed", rec.Processed()).
		Int("tracks", len(rec.Tracks)).
		Float64("seconds", rec.Seconds).
		Msg("Song finished")
	return rec
}

func (r *Runner) processTrack(ctx context.Context, mx *mixer.Mixer, detector *download.Detector, song songs.Song, track mixer.Track, total int, songDir string) stats.TrackRecord {
	logger := r.logger.With().Str("song", song.Name).Str("track", track.Name).Logger()
	rec := stats.TrackRecord{Name: track.Name, Index: track.Index}

	if _, err := mx.ClearSolos(ctx); err != nil {
		logger.Debug().Err(err).Msg("Failed to clear solos")
	}

	solo := mx.Solo(ctx, track, total)
	rec.TrackType = string(solo.Type)
	rec.SoloState = string(solo.State)
	rec.SoloAttempts = solo.Attempts
	rec.SoloSeconds = solo.Elapsed.Seconds()
	if !solo.Active() {
		rec.Error = "solo not active"
		return rec
	}

	before, err := detector.Snapshot()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to snapshot download folder")
		rec.Error = err.Error()
		return rec
	}

	if err := r.triggerDownload(); err != nil {
		logger.Error().Err(err).Msg("Failed to trigger download")
		rec.Error = err.Error()
		return rec
	}

	started := detector.WaitForStart(ctx, before, track.Name)
	if !started.Confirmed {
		rec.DownloadSeconds = started.Elapsed.Seconds()
		rec.Error = "download did not start"
		return rec
	}
	done := detector.WaitForCompletion(ctx, before, track.Name)
	rec.DownloadSeconds = (started.Elapsed + done.Elapsed).Seconds()
	if !done.Confirmed {
		rec.Error = "download not confirmed"
		return rec
	}
	rec.DownloadConfirmed = true
	rec.File = done.File

	dst, err := download.Finalize(done.File, songDir, track.Name)
	if err != nil {
		// The stem is on disk; the final cleanup pass may still rename it
		logger.Warn().Err(err).Str("file", done.File).Msg("Download kept under its original name")
		rec.Error = err.Error()
		return rec
	}
	rec.File = dst

	if r.opts.TagID3 {
		tag := download.Tag{Title: track.Name, Album: song.Name}
		if err := download.TagStem(dst, tag); err != nil {
			logger.Warn().Err(err).Msg("Failed to tag stem")
		}
	}

	logger.Info().Str("file", filepath.Base(dst)).Msg("Track saved")
	return rec
}

// triggerDownload clicks the first present download control
func (r *Runner) triggerDownload() error {
	el, sel, err := browser.FirstPresent(r.page, r.opts.Selectors.Download)
	if err != nil {
		return fmt.Errorf("download control not found: %w", err)
	}
	if _, err := browser.ClickWithFallback(el); err != nil {
		return fmt.Errorf("failed to click download control %s: %w", sel, err)
	}
	return nil
}
