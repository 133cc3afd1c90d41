package download

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/metrics"
	"github.com/rs/zerolog"
)

// Download outcomes, also used as metric labels
const (
	StatusConfirmed  = "confirmed"
	StatusNotStarted = "not_started"
	StatusIncomplete = "incomplete"
)

// Options configures a Detector
type Options struct {
	Dir                 string
	Extensions          []string
	NameLengthThreshold int
	Timing              config.Timing
	Metrics             *metrics.Metrics
	Logger              zerolog.Logger
	// Watch enables fsnotify wake-ups; polling alone is used when false or
	// when the watcher cannot start
	Watch bool
}

// Result is the outcome of waiting for a download
type Result struct {
	Confirmed bool          `json:"confirmed"`
	File      string        `json:"file,omitempty"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Detector watches one download folder
type Detector struct {
	dir       string
	exts      []string
	threshold int
	timing    config.Timing
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	watcher   *Watcher
}

// NewDetector creates a detector for opts.Dir
func NewDetector(opts Options) *Detector {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	d := &Detector{
		dir:       opts.Dir,
		exts:      opts.Extensions,
		threshold: opts.NameLengthThreshold,
		timing:    opts.Timing,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "download").Logger(),
	}

	if opts.Watch {
		if err := os.MkdirAll(opts.Dir, 0755); err == nil {
			w, err := NewWatcher(opts.Dir, d.logger)
			if err != nil {
				d.logger.Warn().Err(err).Msg("Falling back to polling the download folder")
			} else {
				d.watcher = w
			}
		}
	}
	return d
}

// Dir returns the watched folder
func (d *Detector) Dir() string {
	return d.dir
}

// Close stops the filesystem watcher
func (d *Detector) Close() error {
	return d.watcher.Close()
}

// Snapshot lists the watched folder
func (d *Detector) Snapshot() (Listing, error) {
	return Snapshot(d.dir, d.exts)
}

// WaitForStart waits for a new or changed file that looks like the download
// for track. A partial download counts as started.
func (d *Detector) WaitForStart(ctx context.Context, before Listing, track string) Result {
	start := time.Now()
	file, ok := d.poll(ctx, d.timing.DownloadStartTimeout, func(after Listing) (string, bool) {
		for _, name := range Changed(before, after) {
			if IsPartial(name) || LooksLikeKaraokeDownload(name, track, d.threshold) {
				return name, true
			}
		}
		return "", false
	})

	res := Result{Confirmed: ok, Elapsed: time.Since(start)}
	if !ok {
		d.logger.Warn().
			Str("track", track).
			Dur("timeout", d.timing.DownloadStartTimeout).
			Msg("Download did not start")
		d.metrics.ObserveDownload(StatusNotStarted, res.Elapsed)
		return res
	}
	res.File = filepath.Join(d.dir, file)
	d.logger.Debug().Str("track", track).Str("file", file).Msg("Download started")
	return res
}

// WaitForCompletion waits until a matching audio file exists and its
// .crdownload sibling is gone
func (d *Detector) WaitForCompletion(ctx context.Context, before Listing, track string) Result {
	start := time.Now()
	file, ok := d.poll(ctx, d.timing.DownloadCompleteTimeout, func(after Listing) (string, bool) {
		for _, name := range Changed(before, after) {
			if IsPartial(name) || !LooksLikeKaraokeDownload(name, track, d.threshold) {
				continue
			}
			if _, writing := after[name+PartialExt]; writing {
				continue
			}
			if after[name].Size == 0 {
				continue
			}
			return name, true
		}
		return "", false
	})

	res := Result{Confirmed: ok, Elapsed: time.Since(start)}
	if !ok {
		partials := 0
		if after, err := d.Snapshot(); err == nil {
			for name := range after {
				if IsPartial(name) {
					partials++
				}
			}
		}
		d.logger.Warn().
			Str("track", track).
			Int("partials", partials).
			Dur("timeout", d.timing.DownloadCompleteTimeout).
			Msg("Download not confirmed")
		d.metrics.ObserveDownload(StatusIncomplete, res.Elapsed)
		return res
	}

	res.File = filepath.Join(d.dir, file)
	d.metrics.ObserveDownload(StatusConfirmed, res.Elapsed)
	d.logger.Info().
		Str("track", track).
		Str("file", file).
		Dur("elapsed", res.Elapsed).
		Msg("Download complete")
	return res
}

// poll re-reads the folder every poll interval, or sooner when the watcher
// fires, until match succeeds, timeout elapses or ctx is done
func (d *Detector) poll(ctx context.Context, timeout time.Duration, match func(Listing) (string, bool)) (string, bool) {
	interval := d.timing.DownloadPollInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		after, err := d.Snapshot()
		if err != nil {
			d.logger.Warn().Err(err).Msg("Failed to scan download folder")
		} else if name, ok := match(after); ok {
			return name, true
		}

		select {
		case <-ctx.Done():
			return "", false
		case <-deadline.C:
			return "", false
		case <-ticker.C:
		case <-d.watcher.Wake():
		}
	}
}
