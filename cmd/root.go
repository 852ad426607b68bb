package cmd

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/AnyUserName/bulkimg/internal/config"
	"github.com/AnyUserName/bulkimg/internal/logging"
)

var (
	version    = "0.1.0"
	verbose    bool
	configPath string

	cfg    config.Config
	logger = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "bulkimg",
	Short: "Bulk-attach images to catalog entries by fuzzy filename matching",
	Long: `bulkimg matches a folder of loosely named images against a catalog,
shrinks each one to fit 1000px at JPEG quality 85, and uploads the result
to the asset store of the entry it matched.

Matching is deterministic: the same files against the same catalog always
pick the same entries. Files nothing matches are reported, never guessed.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Load .env file if present (ignore errors)
		_ = godotenv.Load()

		path := configPath
		if path == "" {
			path = config.FindConfigFile()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if verbose {
			loaded.Log.Level = "debug"
		}
		cfg = loaded

		l, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		if path != "" {
			logger.Debug("config loaded", "path", path)
		}
		return nil
	},
}

// Root returns the root command with every subcommand attached.
func Root() *cobra.Command {
	return rootCmd
}

// Version reports the CLI version.
func Version() string {
	return version
}

// Execute runs the root command without the fang wrapper.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search bulkimg.yaml, bulkimg.toml, ~/.config/bulkimg/config.yaml)")
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"bulkimg %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))
}
