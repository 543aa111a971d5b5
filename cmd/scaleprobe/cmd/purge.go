package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memebattle/scaleprobe/internal/common/app"
	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

func purgeCmd(a *scaleprobe.App, v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Remove every message from the stream.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Purge(ctx)
		},
	}
}
