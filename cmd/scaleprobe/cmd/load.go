package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memebattle/scaleprobe/internal/common/app"
	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

// Generate cycles of burst load and report how the fleet reacts to each.
func loadCmd(a *scaleprobe.App, v *viper.Viper) *cobra.Command {
	d := scaleprobe.DefaultParams()
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Send bursts of messages to the stream and watch the worker fleet scale.",
		Long: `Send bursts of messages to the stream and watch the worker fleet scale.

Each cycle measures the fleet, sends --bursts bursts of --batchSize messages split between
--parallel concurrent senders, waits --batchPause and measures again. Runs until interrupted,
or for --cycles cycles if set.`,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initParams(cmd, a, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := app.CreateContextWithShutdown()
			defer cancel()
			return a.Load(ctx)
		},
	}

	flags := cmd.Flags()
	flags.String("subject", d.Subject, "subject to publish requests on")
	flags.Int("batchSize", d.BatchSize, "messages per burst")
	flags.Int("parallel", d.Parallel, "concurrent senders per burst")
	flags.Int("bursts", d.Bursts, "bursts per cycle")
	flags.Duration("sendInterval", d.SendInterval, "if set, overrides --messageInterval")
	flags.Duration("messageInterval", d.MessageInterval, "delay between messages from one sender")
	flags.Duration("interBurstPause", d.InterBurstPause, "pause between bursts of a cycle")
	flags.Duration("batchPause", d.BatchPause, "wait after a cycle's load before measuring the fleet again")
	flags.Duration("shortPause", d.ShortPause, "pause before the next cycle while the fleet is small")
	flags.Duration("extendedPause", d.ExtendedPause, "pause before the next cycle once the fleet exceeds --podThreshold")
	flags.Uint64("podThreshold", d.PodThreshold, "pod count above which the extended pause is used")
	flags.Uint64("cycles", d.Cycles, "number of cycles to run, 0 runs until interrupted")
	flags.String("prompts", d.Prompts, "file with one prompt per line; generated prompts are used if empty")
	flags.Bool("fastMode", d.FastMode, "request fast generation")
	flags.Bool("smallImage", d.SmallImage, "request small images")
	bindFlags(v, flags)

	return cmd
}
