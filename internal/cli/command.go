// Package cli implements the loupe command line interface.
package cli

import (
	"github.com/spf13/cobra"
)

// Execute runs the loupe root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:           "loupe [transcript.jsonl]",
		Short:         "Agent session transcript viewer",
		Long:          "Loupe renders an AI coding-agent session transcript as a live, scrollable timeline.\nWith no argument it reopens the last viewed session.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.transcript = args[0]
			}
			return runViewer(opts)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.config/loupe/config.yaml)")
	cmd.Flags().StringVar(&opts.theme, "theme", "", "color theme: default|high-contrast")
	cmd.Flags().StringVar(&opts.viewMode, "view", "", "initial flattening mode: verbose|focused")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "override logging level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "override logging format (json, console)")
	cmd.Flags().BoolVar(&opts.timestamps, "timestamps", false, "show message timestamps")
	cmd.Flags().BoolVar(&opts.noFollow, "no-follow", false, "do not tail the transcript for live updates")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "messages per lazy history load")

	cmd.AddCommand(newContextCmd())
	return cmd
}
