package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	v1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"

	"github.com/memebattle/scaleprobe/internal/common/pointer"
	"github.com/memebattle/scaleprobe/internal/common/probeerrors"
)

var ScaledObjectResource = schema.GroupVersionResource{
	Group:    "keda.sh",
	Version:  "v1alpha1",
	Resource: "scaledobjects",
}

// KubernetesInspector implements Inspector against the Kubernetes API.
// ScaledObjects are read through the dynamic client so that no KEDA types are needed.
type KubernetesInspector struct {
	client  kubernetes.Interface
	dynamic dynamic.Interface
}

func NewKubernetesInspector(client kubernetes.Interface, dynamicClient dynamic.Interface) *KubernetesInspector {
	return &KubernetesInspector{
		client:  client,
		dynamic: dynamicClient,
	}
}

// PodCount counts pods matching selector that have not terminated.
func (k *KubernetesInspector) PodCount(ctx context.Context, namespace string, selector string) (uint64, error) {
	pods, err := k.client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return 0, probeerrors.NewTransport(fmt.Sprintf("list pods %s in %s", selector, namespace), err)
	}
	var count uint64
	for _, pod := range pods.Items {
		if pod.Status.Phase == v1.PodSucceeded || pod.Status.Phase == v1.PodFailed {
			continue
		}
		count++
	}
	return count, nil
}

func (k *KubernetesInspector) ScalerStatus(ctx context.Context, namespace string, name string) (ScalerStatus, error) {
	obj, err := k.dynamic.Resource(ScaledObjectResource).Namespace(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return ScalerStatus{}, probeerrors.NewTransport(fmt.Sprintf("get scaledobject %s/%s", namespace, name), err)
	}
	status, err := scalerStatusFromUnstructured(obj)
	if err != nil {
		return ScalerStatus{}, probeerrors.NewTransport(fmt.Sprintf("decode scaledobject %s/%s", namespace, name), err)
	}
	return status, nil
}

func (k *KubernetesInspector) AutoscalerStatus(ctx context.Context, namespace string, name string) (AutoscalerStatus, error) {
	hpa, err := k.client.AutoscalingV2().HorizontalPodAutoscalers(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return AutoscalerStatus{}, probeerrors.NewTransport(fmt.Sprintf("get hpa %s/%s", namespace, name), err)
	}
	return autoscalerStatusFromHpa(hpa), nil
}

func scalerStatusFromUnstructured(obj *unstructured.Unstructured) (ScalerStatus, error) {
	status := ScalerStatus{}
	rawConditions, found, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil {
		return status, err
	}
	if found {
		for _, raw := range rawConditions {
			fields, ok := raw.(map[string]interface{})
			if !ok {
				return status, errors.Errorf("unexpected condition of type %T", raw)
			}
			condition := Condition{Type: "Unknown", Status: ConditionUnknown}
			if t, ok := fields["type"].(string); ok {
				condition.Type = t
			}
			if s, ok := fields["status"].(string); ok {
				condition.Status = ParseConditionStatus(s)
			}
			if m, ok := fields["message"].(string); ok {
				condition.Message = m
			}
			status.Conditions = append(status.Conditions, condition)
		}
	}

	lastActive, found, err := unstructured.NestedString(obj.Object, "status", "lastActiveTime")
	if err != nil {
		return status, err
	}
	if found && lastActive != "" {
		t, err := time.Parse(time.RFC3339, lastActive)
		if err != nil {
			return status, errors.WithMessagef(err, "invalid lastActiveTime %q", lastActive)
		}
		status.LastActive = &t
	}
	return status, nil
}

func autoscalerStatusFromHpa(hpa *autoscalingv2.HorizontalPodAutoscaler) AutoscalerStatus {
	status := AutoscalerStatus{
		CurrentReplicas: pointer.Uint64(hpa.Status.CurrentReplicas),
		DesiredReplicas: pointer.Uint64(hpa.Status.DesiredReplicas),
	}
	for _, metric := range hpa.Status.CurrentMetrics {
		if metric.Type != autoscalingv2.ExternalMetricSourceType || metric.External == nil {
			continue
		}
		current := metric.External.Current
		switch {
		case current.Value != nil:
			status.Metrics = append(status.Metrics, MetricValue{Name: metric.External.Metric.Name, Value: current.Value.String()})
		case current.AverageValue != nil:
			status.Metrics = append(status.Metrics, MetricValue{Name: metric.External.Metric.Name, Value: current.AverageValue.String()})
		}
	}
	return status
}
