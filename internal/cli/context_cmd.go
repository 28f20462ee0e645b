package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newContextCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Show the remembered session",
		Long:  "Shows which transcript loupe will reopen when invoked without arguments.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			viewerCtx, err := contextStore(cfg).Load()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), viewerCtx.String())
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is $HOME/.config/loupe/config.yaml)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Forget the remembered session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(configFile)
			if err != nil {
				return err
			}
			if err := contextStore(cfg).Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Context cleared.")
			return nil
		},
	})

	return cmd
}
