package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/chime/internal/sound"
)

var soundsCmd = &cobra.Command{
	Use:   "sounds",
	Short: "List the sound effects in the bundle",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bundle, err := sound.Open(cfg.Resources.BundleDir)
		if err != nil {
			return err
		}
		names, err := sound.Resources(bundle)
		if err != nil {
			return err
		}
		for _, name := range names {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(soundsCmd)
}
