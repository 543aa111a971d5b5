package cmd

import (
	"github.com/spf13/cobra"

	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

// Print version info and exit.
func versionCmd(a *scaleprobe.App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Version()
		},
	}
}
