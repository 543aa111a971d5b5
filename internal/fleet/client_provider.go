package fleet

import (
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/flowcontrol"

	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

type KubernetesConfig struct {
	// Path to a kubeconfig file. Empty uses the default loading rules ($KUBECONFIG, ~/.kube/config).
	Kubeconfig string
	// Kubeconfig context to use. Empty uses the current context.
	Context string
	QPS     float32
	Burst   int
}

// NewInspectorFromConfig builds a KubernetesInspector, preferring in-cluster configuration when available.
func NewInspectorFromConfig(config KubernetesConfig) (*KubernetesInspector, error) {
	if config.QPS <= 0 {
		return nil, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "qps",
			Value:   config.QPS,
			Message: "qps must be positive",
		})
	}
	if config.Burst <= 0 {
		return nil, errors.WithStack(&probeerrors.ErrInvalidArgument{
			Name:    "burst",
			Value:   config.Burst,
			Message: "burst must be positive",
		})
	}

	restConfig, err := loadConfig(config)
	if err != nil {
		return nil, errors.WithMessage(err, "error loading kubernetes client configuration")
	}
	// Shared by both clients, so together they never exceed qps.
	restConfig.RateLimiter = flowcontrol.NewTokenBucketRateLimiter(config.QPS, config.Burst)

	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.WithMessage(err, "error creating clientset")
	}
	dynamicClient, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.WithMessage(err, "error creating dynamic client")
	}
	return NewKubernetesInspector(client, dynamicClient), nil
}

func loadConfig(config KubernetesConfig) (*rest.Config, error) {
	if config.Kubeconfig == "" && config.Context == "" {
		restConfig, err := rest.InClusterConfig()
		if err == nil {
			log.Debug("Running with in cluster client configuration")
			return restConfig, nil
		}
		if err != rest.ErrNotInCluster {
			return nil, err
		}
	}
	log.Debug("Running with kubeconfig client configuration")
	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	if config.Kubeconfig != "" {
		rules.ExplicitPath = config.Kubeconfig
	}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: config.Context}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
}
