package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "scaleprobe",
		Short: "scaleprobe generates queue load and watches the worker fleet autoscale in response.",
		Long: `scaleprobe generates queue load and watches the worker fleet autoscale in response.

Persistent config can be saved in a config file so it doesn't have to be specified every command.

Example structure:
stream: MEMES
namespace: meme-generator
portForward:
  service: svc/nats
  namespace: messaging
batchSize: 100
parallel: 20

The location of this file can be passed in using the --config argument.
If not provided, $HOME/.scaleprobe.yaml is used. Every option can also be set with an
environment variable prefixed SCALEPROBE_, e.g. SCALEPROBE_BATCHSIZE=100.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addConnectionFlags(cmd, v)

	cmd.AddCommand(
		loadCmd(scaleprobe.New(), v),
		monitorCmd(scaleprobe.New(), v),
		purgeCmd(scaleprobe.New(), v),
		versionCmd(scaleprobe.New()),
	)

	return cmd
}
