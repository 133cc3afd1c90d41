package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harun/kvstems/internal/app"
	"github.com/harun/kvstems/internal/stats"
	"github.com/harun/kvstems/pkg/perf"
	"github.com/harun/kvstems/pkg/songs"
	"github.com/spf13/cobra"
)

var perfOpts struct {
	abTest       string
	baselineTest string
	songsFile    string
	maxTracks    int
}

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Measure timing baselines against the song list",
	Long: `Run the automation with one timing baseline (--baseline-test) or with two
baselines back to back (--ab-test A,B) and compare them. Results are written
as JSON to the logs directory.

Baselines: ` + strings.Join(perf.Names(), ", "),
	Args: cobra.NoArgs,
	RunE: runPerf,
}

func init() {
	rootCmd.AddCommand(perfCmd)

	flags := perfCmd.Flags()
	flags.StringVar(&perfOpts.abTest, "ab-test", "", "compare two baselines, e.g. default,conservative")
	flags.StringVar(&perfOpts.baselineTest, "baseline-test", "", "run a single baseline")
	flags.StringVar(&perfOpts.songsFile, "songs", "", "songs file (default from config, songs.yaml)")
	flags.IntVar(&perfOpts.maxTracks, "max-tracks", 0, "process at most N tracks per song (0 = all)")
}

// parseABTest splits "a,b" into two baseline names
func parseABTest(v string) (string, string, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("--ab-test takes two baselines separated by a comma, got %q", v)
	}
	a, b := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if a == "" || b == "" {
		return "", "", fmt.Errorf("--ab-test takes two baselines separated by a comma, got %q", v)
	}
	return a, b, nil
}

func runPerf(cmd *cobra.Command, args []string) error {
	if (perfOpts.abTest == "") == (perfOpts.baselineTest == "") {
		return errors.New("exactly one of --ab-test or --baseline-test is required")
	}
	var a, b string
	if perfOpts.abTest != "" {
		var err error
		if a, b, err = parseABTest(perfOpts.abTest); err != nil {
			return err
		}
	}

	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	if perfOpts.songsFile != "" {
		cfg.SongsFile = perfOpts.songsFile
	}
	if cmd.Flags().Changed("max-tracks") {
		cfg.Automation.MaxTracks = perfOpts.maxTracks
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	list, err := songs.NewLoader(log.GetZerolog()).Load(cfg.SongsFile)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	// Interrupted downloads leave .crdownload files in the root
	defer func() { _ = application.Shutdown(ctx.Err() != nil) }()

	if err := application.Login(ctx, cfg.Automation.ForceLogin); err != nil {
		return err
	}

	run := func(ctx context.Context, baseline perf.Baseline) (stats.Report, error) {
		return application.RunBaseline(ctx, list, baseline)
	}

	out := cmd.OutOrStdout()
	harness := application.Harness(out)

	if perfOpts.baselineTest != "" {
		res, err := harness.BaselineTest(ctx, perfOpts.baselineTest, run)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Baseline %s: %d/%d songs, %d downloads, %.0f%% success, %.1fs\n",
			res.Baseline, res.Totals.SongsProcessed, res.Totals.Songs,
			res.Totals.DownloadsConfirmed, res.Totals.SuccessRate*100, res.DurationSec)
		return nil
	}

	_, err = harness.ABTest(ctx, a, b, run)
	return err
}
