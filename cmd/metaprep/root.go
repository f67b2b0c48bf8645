// Root command for the metaprep CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/omicsdb/metaprep/internal/paths"
	"github.com/omicsdb/metaprep/pkg/metaprep"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagVerbose   bool
)

// Values loaded from config.yaml by PersistentPreRunE so all subcommands can
// use them.
var (
	configDataDir    string
	configDriver     string
	configDSN        string
	configWorkingDir string
)

var rootCmd = &cobra.Command{
	Use:     "metaprep",
	Short:   "Metaprep manages study metadata templates and preprocessing",
	Version: metaprep.Version,
	Long: `Metaprep keeps per-study sample templates and per-run prep templates in a
relational store, bulk-loads metadata files transactionally, and drives the
preprocessing pipeline that demultiplexes raw sequence data.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configDriver = cfg.GetString(cfgKeyDriver)
		configDSN = cfg.GetString(cfgKeyDSN)
		configWorkingDir = cfg.GetString(cfgKeyWorkingDir)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.metaprep-db)")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "verbose logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(studyCreateCmd)
	rootCmd.AddCommand(loadRawCmd)
	rootCmd.AddCommand(sampleAddCmd)
	rootCmd.AddCommand(prepAddCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(filepathsCmd)
	rootCmd.AddCommand(investigationTypeCmd)
	rootCmd.AddCommand(preprocessCmd)
	rootCmd.AddCommand(statusCmd)
}

// resolveDataDir returns the data directory following the precedence chain:
// --data-dir flag > config.yaml data_dir > METAPREP_DATA_DIR env > default.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence chain: --config-dir flag > METAPREP_CONFIG_DIR env > default.
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}
