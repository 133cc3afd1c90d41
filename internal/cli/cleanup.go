package cli

import (
	"fmt"

	"github.com/harun/kvstems/pkg/download"
	"github.com/spf13/cobra"
)

var cleanupOpts struct {
	removePartials bool
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup [folder]",
	Short: "Rename leftover site downloads in the download folder",
	Long: `Scan every song folder under the download folder and give site downloads
the detector missed their clean track names. Names that are already taken
are left alone and reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCleanup,
}

func init() {
	rootCmd.AddCommand(cleanupCmd)

	cleanupCmd.Flags().BoolVar(&cleanupOpts.removePartials, "remove-partials", false, "also delete .crdownload files left in the folder root")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Close()

	folder := cfg.DownloadFolder
	if len(args) == 1 {
		folder = args[0]
	}

	report, err := download.FinalCleanup(folder, cfg.Download.Extensions, cfg.Download.NameLengthThreshold, log.GetZerolog())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, path := range report.Renamed {
		fmt.Fprintf(out, "renamed    %s\n", path)
	}
	for _, path := range report.Conflicts {
		fmt.Fprintf(out, "conflict   %s\n", path)
	}
	for _, path := range report.Stale {
		fmt.Fprintf(out, "stale      %s\n", path)
	}
	for _, path := range report.Unassigned {
		fmt.Fprintf(out, "unassigned %s\n", path)
	}

	if cleanupOpts.removePartials {
		n, err := download.RemovePartials(folder)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "removed %d partial downloads\n", n)
	}
	return nil
}
