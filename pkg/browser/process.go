package browser

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog"
)

// Launcher manages the single Chrome process the automation drives
type Launcher struct {
	opts     LaunchOptions
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *RodPage
	logger   zerolog.Logger
	mu       sync.Mutex
}

// NewLauncher creates a launcher for the given options
func NewLauncher(opts LaunchOptions, logger zerolog.Logger) *Launcher {
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = 1920
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = 1080
	}
	return &Launcher{
		opts:   opts,
		logger: logger.With().Str("component", "browser").Logger(),
	}
}

// Launch spawns Chrome, connects over CDP and opens the working page.
// Failure here is fatal for a run.
func (l *Launcher) Launch(ctx context.Context) (*RodPage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.page != nil {
		return l.page, nil
	}

	if err := l.ensureDirs(); err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeConfiguration,
			Message: fmt.Sprintf("Failed to create browser directories: %v", err),
		}
	}

	lc := launcher.New().
		Context(ctx).
		Headless(l.opts.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", l.opts.WindowWidth, l.opts.WindowHeight))

	if l.opts.NoSandbox {
		lc = lc.NoSandbox(true)
	}
	if l.opts.ChromePath != "" {
		lc = lc.Bin(l.opts.ChromePath)
	}
	if l.opts.UserDataDir != "" {
		lc = lc.UserDataDir(l.opts.UserDataDir)
	}

	controlURL, err := lc.Launch()
	if err != nil {
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to launch Chrome: %v", err),
		}
	}
	l.launcher = lc

	browser := rod.New().ControlURL(controlURL).NoDefaultDevice()
	if err := browser.Connect(); err != nil {
		lc.Kill()
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to connect to CDP: %v", err),
		}
	}
	l.browser = browser

	if l.opts.DownloadDir != "" {
		err := proto.BrowserSetDownloadBehavior{
			Behavior:      proto.BrowserSetDownloadBehaviorBehaviorAllow,
			DownloadPath:  l.opts.DownloadDir,
			EventsEnabled: true,
		}.Call(browser)
		if err != nil {
			l.closeLocked()
			return nil, &BrowserError{
				Code:    ErrCodeBrowserCrash,
				Message: fmt.Sprintf("Failed to enable downloads: %v", err),
			}
		}
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		l.closeLocked()
		return nil, &BrowserError{
			Code:    ErrCodeBrowserCrash,
			Message: fmt.Sprintf("Failed to create page: %v", err),
		}
	}

	l.page = NewRodPage(page, l.opts.ActionTimeout, l.opts.NavTimeout)

	l.logger.Info().
		Bool("headless", l.opts.Headless).
		Str("download_dir", l.opts.DownloadDir).
		Msg("Chrome started")

	return l.page, nil
}

// Close shuts the browser down and kills the process
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Launcher) closeLocked() error {
	var closeErr error
	if l.browser != nil {
		closeErr = l.browser.Close()
		l.browser = nil
	}
	if l.launcher != nil {
		l.launcher.Kill()
		// Only throwaway profiles are removed
		if l.opts.UserDataDir == "" {
			l.launcher.Cleanup()
		}
		l.launcher = nil
	}
	if l.page != nil {
		l.logger.Info().Msg("Chrome stopped")
	}
	l.page = nil
	return closeErr
}

// IsRunning reports whether a browser is connected
func (l *Launcher) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.browser != nil
}

func (l *Launcher) ensureDirs() error {
	for _, dir := range []string{l.opts.UserDataDir, l.opts.DownloadDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// IsChromeInstalled checks if Chrome is installed
func IsChromeInstalled() bool {
	_, has := launcher.LookPath()
	return has
}
