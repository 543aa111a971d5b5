package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/memebattle/scaleprobe/internal/common/config"
	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/scaleprobe"
)

const (
	configFlag = "config"
	envPrefix  = "SCALEPROBE"
)

// addConnectionFlags registers the flags shared by every command: where the broker and the
// cluster are, and how to talk to them.
func addConnectionFlags(cmd *cobra.Command, v *viper.Viper) {
	d := scaleprobe.DefaultParams()
	flags := cmd.PersistentFlags()
	flags.String(configFlag, "", "config file (default is $HOME/.scaleprobe.yaml)")

	flags.String("natsUrl", d.NatsUrl, "broker url, used when port forwarding is disabled")
	flags.String("stream", d.Stream, "stream to load, sample and purge")
	flags.String("consumer", d.Consumer, "durable consumer whose backlog is measured")
	flags.Duration("requestTimeout", d.RequestTimeout, "timeout of each broker request")

	flags.String("namespace", d.Namespace, "namespace of the worker fleet")
	flags.String("podSelector", d.PodSelector, "label selector matching worker pods")
	flags.String("scaledObject", d.ScaledObject, "KEDA ScaledObject scaling the workers")
	flags.String("hpa", d.Hpa, "HorizontalPodAutoscaler created by KEDA for the ScaledObject")
	flags.String("kubeconfig", d.Kubeconfig, "path to a kubeconfig file (default uses the standard loading rules)")
	flags.String("kubeContext", d.KubeContext, "kubeconfig context to use")
	flags.Float32("kubeQps", d.KubeQPS, "maximum requests per second to the kubernetes api")
	flags.Int("kubeBurst", d.KubeBurst, "maximum burst of requests to the kubernetes api")

	flags.Bool("portForward.enabled", d.PortForward.Enabled, "reach the broker through kubectl port-forward")
	flags.String("portForward.kubectl", d.PortForward.Kubectl, "kubectl binary used for port forwarding")
	flags.String("portForward.service", d.PortForward.Service, "service to forward")
	flags.String("portForward.namespace", d.PortForward.Namespace, "namespace of the forwarded service")
	flags.String("portForward.ports", d.PortForward.Ports, "port mapping, local:remote")
	flags.Duration("portForward.readyTimeout", d.PortForward.ReadyTimeout, "how long to wait for the forwarded port to accept connections")

	flags.Uint16("metricsPort", d.MetricsPort, "port to serve prometheus metrics on, 0 disables")
	flags.String("logFormat", d.LogFormat, "log format: cli, text or json")
	flags.String("logLevel", d.LogLevel, "log level")
	flags.StringP("output", "o", d.Output, "output format: text, json or yaml")

	bindFlags(v, flags)
}

// bindFlags makes every flag in flags readable through v under its own name.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == configFlag {
			return
		}
		_ = v.BindPFlag(f.Name, f)
	})
}

// initParams merges flags, config file and environment into app.Params and configures logging.
func initParams(cmd *cobra.Command, app *scaleprobe.App, v *viper.Viper) error {
	cfgFile, err := cmd.Flags().GetString(configFlag)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := config.LoadConfigFile(v, cfgFile, "scaleprobe", envPrefix); err != nil {
		return err
	}
	if err := config.Unmarshal(v, app.Params); err != nil {
		config.LogValidationErrors(err)
		return err
	}
	return logging.ConfigureLogging(app.Params.LogFormat, app.Params.LogLevel)
}
