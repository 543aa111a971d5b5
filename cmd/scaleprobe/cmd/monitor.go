package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memebattle/scaleprobe/internal/common/app"
	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

func monitorCmd(a *scaleprobe.App, v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Continuously show stream depth, pod count and autoscaler state.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Monitor(ctx)
		},
	}
	cmd.Flags().Duration("monitorInterval", scaleprobe.DefaultParams().MonitorInterval, "time between samples")
	bindFlags(v, cmd.Flags())
	return cmd
}
