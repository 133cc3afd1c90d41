package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harun/kvstems/internal/app"
	"github.com/harun/kvstems/internal/config"
	"github.com/harun/kvstems/internal/logger"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
	debug    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "kvstems",
	Short: "kvstems - karaoke stem extraction",
	Long: `kvstems signs into the karaoke site, solos every track of each song
in your list and downloads it as an isolated stem, one folder per song.`,
	Version:      version,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./kvstems.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "shorthand for --log-level debug")

	// Version template
	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// setup loads the config and logger for cmd; logs go to its error stream
func setup(cmd *cobra.Command) (*config.Config, *logger.Logger, error) {
	return app.Setup(cfgFile, app.Overrides{
		LogLevel: logLevel,
		Debug:    debug,
		Out:      cmd.ErrOrStderr(),
	})
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}
