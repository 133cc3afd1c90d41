package cli

import (
	"fmt"

	"github.com/harun/kvstems/internal/app"
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/pkg/perf"
	"github.com/harun/kvstems/pkg/songs"
	"github.com/spf13/cobra"
)

var runOpts struct {
	songsFile    string
	forceLogin   bool
	clearSession bool
	maxTracks    int
	headless     bool
	baseline     string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Download the isolated tracks of every song in the list",
	Long: `Log in (reusing the saved session when it is still valid), then for every
song: open its page, apply the key change, solo each track in turn and
download it into the song's folder. A stats report is written to the logs
directory when the run ends.

The command fails when no song produced a single downloaded track.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringVar(&runOpts.songsFile, "songs", "", "songs file (default from config, songs.yaml)")
	flags.BoolVar(&runOpts.forceLogin, "force-login", false, "ignore the saved session and log in through the form")
	flags.BoolVar(&runOpts.clearSession, "clear-session", false, "delete the saved session before starting")
	flags.IntVar(&runOpts.maxTracks, "max-tracks", 0, "process at most N tracks per song (0 = all)")
	flags.BoolVar(&runOpts.headless, "headless", false, "run Chrome without a window")
	flags.StringVar(&runOpts.baseline, "baseline", perf.BaselineDefault, "timing baseline (default, conservative, fast, patient)")
}

// applyRunFlags copies the flags the user set onto cfg
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("max-tracks") {
		cfg.Automation.MaxTracks = runOpts.maxTracks
	}
	if flags.Changed("headless") {
		cfg.Browser.Launch.Headless = runOpts.headless
	}
	if flags.Changed("force-login") {
		cfg.Automation.ForceLogin = runOpts.forceLogin
	}
	if flags.Changed("clear-session") {
		cfg.Automation.ClearSession = runOpts.clearSession
	}
	if runOpts.songsFile != "" {
		cfg.SongsFile = runOpts.songsFile
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	baseline, err := perf.Lookup(runOpts.baseline, cfg.Timing)
	if err != nil {
		return err
	}

	list, err := songs.NewLoader(log.GetZerolog()).Load(cfg.SongsFile)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	// Interrupted downloads leave .crdownload files in the root
	defer func() { _ = a.Shutdown(ctx.Err() != nil) }()

	if cfg.Automation.ClearSession {
		if err := a.ClearSession(); err != nil {
			return err
		}
	}
	if err := a.Login(ctx, cfg.Automation.ForceLogin); err != nil {
		return err
	}

	report, err := a.Run(ctx, list, baseline)
	report.PrintSummary(cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("run %s: %w", report.RunID, err)
	}
	return nil
}
