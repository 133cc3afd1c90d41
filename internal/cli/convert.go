package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/harun/kvstems/internal/app"
	"github.com/harun/kvstems/pkg/catalog"
	"github.com/harun/kvstems/pkg/songs"
	"github.com/spf13/cobra"
)

var convertOpts struct {
	csvFile    string
	outFile    string
	reportFile string
}

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Build a songs file from a CSV of song titles and artists",
	Long: `Search the site for every row of the CSV and keep the confident matches.
HIGH and MEDIUM confidence matches are written to the songs file; every row,
including the rejected ones, is listed in the report.

The CSV needs a header with a song (or title) column; artist and key columns
are optional.`,
	Args: cobra.NoArgs,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	flags := convertCmd.Flags()
	flags.StringVar(&convertOpts.csvFile, "csv", "", "CSV file to convert (required)")
	flags.StringVar(&convertOpts.outFile, "out", "songs.yaml", "songs file to write")
	flags.StringVar(&convertOpts.reportFile, "report", "", "write the match report here instead of stdout")
	_ = convertCmd.MarkFlagRequired("csv")
}

func runConvert(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	if cfg.Site.SearchURL == "" {
		return errors.New("site.search_url is required to convert a CSV")
	}

	f, err := os.Open(convertOpts.csvFile)
	if err != nil {
		return fmt.Errorf("failed to open CSV: %w", err)
	}
	rows, err := catalog.ReadCSV(f, log.GetZerolog())
	f.Close()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	outcome, err := a.Converter().Convert(ctx, rows)
	if err != nil {
		return err
	}

	if err := songs.Save(convertOpts.outFile, outcome.Songs); err != nil {
		return err
	}

	var report io.Writer = cmd.OutOrStdout()
	if convertOpts.reportFile != "" {
		rf, err := os.Create(convertOpts.reportFile)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		defer rf.Close()
		report = rf
	}
	catalog.WriteReport(report, outcome)

	counts := outcome.Counts()
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d songs to %s (high %d, medium %d, low %d)\n",
		len(outcome.Songs), convertOpts.outFile,
		counts[catalog.ConfidenceHigh], counts[catalog.ConfidenceMedium], counts[catalog.ConfidenceLow])
	return nil
}
