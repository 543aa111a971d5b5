package scaleprobe

import (
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/memebattle/scaleprobe/internal/common/logging"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

const (
	OutputText = "text"
	OutputJson = "json"
	OutputYaml = "yaml"
)

// Params struct holds all user-customizable parameters.
// Using a single struct for all CLI commands ensures that all flags are distinct
// and that they can be provided either dynamically on a command line, or
// statically in a config file that's reused between command runs.
type Params struct {
	NatsUrl        string        `mapstructure:"natsUrl"`
	Stream         string        `mapstructure:"stream" validate:"required"`
	Consumer       string        `mapstructure:"consumer" validate:"required"`
	Subject        string        `mapstructure:"subject" validate:"required"`
	RequestTimeout time.Duration `mapstructure:"requestTimeout" validate:"gte=0"`

	Namespace    string  `mapstructure:"namespace" validate:"required"`
	PodSelector  string  `mapstructure:"podSelector"`
	ScaledObject string  `mapstructure:"scaledObject"`
	Hpa          string  `mapstructure:"hpa"`
	Kubeconfig   string  `mapstructure:"kubeconfig"`
	KubeContext  string  `mapstructure:"kubeContext"`
	KubeQPS      float32 `mapstructure:"kubeQps" validate:"gt=0"`
	KubeBurst    int     `mapstructure:"kubeBurst" validate:"gt=0"`

	PortForward PortForwardParams `mapstructure:"portForward"`

	BatchSize int `mapstructure:"batchSize" validate:"gte=0"`
	Parallel  int `mapstructure:"parallel"`
	Bursts    int `mapstructure:"bursts"`
	// Accepted for compatibility with older configs. When set it replaces MessageInterval.
	SendInterval    time.Duration `mapstructure:"sendInterval" validate:"gte=0"`
	MessageInterval time.Duration `mapstructure:"messageInterval" validate:"gte=0"`
	InterBurstPause time.Duration `mapstructure:"interBurstPause" validate:"gte=0"`
	// Wait between the end of a cycle's load and measuring the fleet again.
	BatchPause    time.Duration `mapstructure:"batchPause" validate:"gte=0"`
	ShortPause    time.Duration `mapstructure:"shortPause" validate:"gte=0"`
	ExtendedPause time.Duration `mapstructure:"extendedPause" validate:"gte=0"`
	PodThreshold  uint64        `mapstructure:"podThreshold"`
	Cycles        uint64        `mapstructure:"cycles"`
	Prompts       string        `mapstructure:"prompts"`
	FastMode      bool          `mapstructure:"fastMode"`
	SmallImage    bool          `mapstructure:"smallImage"`

	MonitorInterval time.Duration `mapstructure:"monitorInterval" validate:"gte=0"`
	MetricsPort     uint16        `mapstructure:"metricsPort"`
	LogFormat       string        `mapstructure:"logFormat"`
	LogLevel        string        `mapstructure:"logLevel"`
	Output          string        `mapstructure:"output"`
}

type PortForwardParams struct {
	Enabled      bool          `mapstructure:"enabled"`
	Kubectl      string        `mapstructure:"kubectl"`
	Service      string        `mapstructure:"service"`
	Namespace    string        `mapstructure:"namespace"`
	Ports        string        `mapstructure:"ports"`
	ReadyTimeout time.Duration `mapstructure:"readyTimeout" validate:"gte=0"`
}

// DefaultParams returns the parameters used when neither flags nor config set a value.
func DefaultParams() *Params {
	return &Params{
		NatsUrl:        "nats://localhost:4222",
		Stream:         "MEMES",
		Consumer:       "meme-generator",
		Subject:        "meme.request",
		RequestTimeout: 5 * time.Second,
		Namespace:      "meme-generator",
		PodSelector:    "app=meme-generator",
		ScaledObject:   "meme-generator-backend-scaler",
		Hpa:            "keda-hpa-meme-generator-backend-scaler",
		KubeQPS:        20,
		KubeBurst:      40,
		PortForward: PortForwardParams{
			Enabled:      true,
			Kubectl:      "kubectl",
			Service:      "svc/nats",
			Namespace:    "messaging",
			Ports:        "4222:4222",
			ReadyTimeout: 10 * time.Second,
		},
		BatchSize:       50,
		Parallel:        10,
		Bursts:          3,
		MessageInterval: 10 * time.Millisecond,
		InterBurstPause: time.Second,
		BatchPause:      5 * time.Second,
		ShortPause:      5 * time.Second,
		ExtendedPause:   20 * time.Second,
		PodThreshold:    3,
		FastMode:        true,
		SmallImage:      true,
		MonitorInterval: 2 * time.Second,
		LogFormat:       logging.FormatCli,
		LogLevel:        "info",
		Output:          OutputText,
	}
}

// EffectiveMessageInterval is the delay each sender waits between its messages.
func (p *Params) EffectiveMessageInterval() time.Duration {
	if p.SendInterval > 0 {
		return p.SendInterval
	}
	return p.MessageInterval
}

// Validate checks the relationships between parameters that struct tags cannot express.
// All problems are reported together.
func (p *Params) Validate() error {
	var result *multierror.Error
	switch p.Output {
	case OutputText, OutputJson, OutputYaml:
	default:
		result = multierror.Append(result, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "output",
			Value:   p.Output,
			Message: "valid outputs are text, json and yaml",
		}))
	}
	if p.PortForward.Enabled && (p.PortForward.Service == "" || p.PortForward.Namespace == "" || p.PortForward.Ports == "") {
		result = multierror.Append(result, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "portForward",
			Value:   p.PortForward,
			Message: "service, namespace and ports are required when port forwarding is enabled",
		}))
	}
	return result.ErrorOrNil()
}

// ValidateLoad additionally checks the parameters of load generation.
func (p *Params) ValidateLoad() error {
	var result *multierror.Error
	if err := p.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if p.Parallel < 1 {
		result = multierror.Append(result, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "parallel",
			Value:   p.Parallel,
			Message: "at least one sender is required",
		}))
	}
	if p.Bursts < 1 {
		result = multierror.Append(result, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "bursts",
			Value:   p.Bursts,
			Message: "at least one burst per cycle is required",
		}))
	}
	if p.Parallel >= 1 && p.BatchSize < p.Parallel {
		result = multierror.Append(result, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "batchSize",
			Value:   p.BatchSize,
			Message: "must be at least the number of parallel senders, otherwise nothing is sent",
		}))
	}
	return result.ErrorOrNil()
}
