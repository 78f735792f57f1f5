// Package cmd implements the chime command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zjrosen/chime/internal/config"
	"github.com/zjrosen/chime/internal/log"
)

var (
	cfgFile  string
	logLevel string
	cfg      config.Config
)

var rootCmd = &cobra.Command{
	Use:   "chime",
	Short: "Drive the chime audio subsystem from the command line",
	Long: `chime plays sound effects and background music through the audio
command queue, asset cache and playback engine used by the game runtime.`,
	SilenceUsage:       true,
	PersistentPreRunE:  initConfig,
	PersistentPostRunE: closeLog,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: user config dir/chime/chime.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initConfig(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	cfg = loaded

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if cfg.Log.File != "" {
		if err := log.InitFile(cfg.Log.File, level); err != nil {
			return err
		}
	} else {
		log.Init(cmd.ErrOrStderr(), level)
	}
	log.Debug(log.CatCLI, "Config loaded", "command", cmd.Name(), "file", cfgFile)
	return nil
}

func closeLog(*cobra.Command, []string) error {
	return log.Close()
}
