// Package fleet observes the worker fleet and the autoscaler driving it.
package fleet

import (
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/exp/slices"
)

type ConditionStatus string

const (
	ConditionTrue    ConditionStatus = "True"
	ConditionFalse   ConditionStatus = "False"
	ConditionUnknown ConditionStatus = "Unknown"
)

// ActiveConditionType is the ScaledObject condition reporting whether the scaler is active.
const ActiveConditionType = "Active"

func ParseConditionStatus(s string) ConditionStatus {
	switch ConditionStatus(s) {
	case ConditionTrue, ConditionFalse:
		return ConditionStatus(s)
	default:
		return ConditionUnknown
	}
}

type Condition struct {
	Type    string          `json:"type"`
	Status  ConditionStatus `json:"status"`
	Message string          `json:"message,omitempty"`
}

// State is a point-in-time view of the fleet. Replica counts are nil when unknown.
type State struct {
	PodCount        uint64      `json:"podCount"`
	CurrentReplicas *uint64     `json:"currentReplicas"`
	DesiredReplicas *uint64     `json:"desiredReplicas"`
	Conditions      []Condition `json:"conditions,omitempty"`
}

// ScalerStatus is the status reported by the event-driven scaler object (a KEDA ScaledObject).
type ScalerStatus struct {
	Conditions []Condition `json:"conditions"`
	LastActive *time.Time  `json:"lastActive"`
}

// MetricValue is one metric the autoscaler currently bases its decision on.
type MetricValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AutoscalerStatus is the status of the HorizontalPodAutoscaler created for the scaler.
type AutoscalerStatus struct {
	CurrentReplicas *uint64       `json:"currentReplicas"`
	DesiredReplicas *uint64       `json:"desiredReplicas"`
	Metrics         []MetricValue `json:"metrics,omitempty"`
}

// Inspector is the read-only view of the cluster scaleprobe depends on.
type Inspector interface {
	PodCount(ctx context.Context, namespace string, selector string) (uint64, error)
	ScalerStatus(ctx context.Context, namespace string, name string) (ScalerStatus, error)
	AutoscalerStatus(ctx context.Context, namespace string, name string) (AutoscalerStatus, error)
}

// Target identifies the fleet under test.
type Target struct {
	Namespace    string
	PodSelector  string
	ScaledObject string
	Autoscaler   string
}

// ActiveStatus returns the status of the Active condition, or ConditionUnknown if it is absent.
func ActiveStatus(conditions []Condition) ConditionStatus {
	i := slices.IndexFunc(conditions, func(c Condition) bool { return c.Type == ActiveConditionType })
	if i < 0 {
		return ConditionUnknown
	}
	return conditions[i].Status
}

// Observation is everything Observe learned about the fleet in one pass.
type Observation struct {
	State      State
	Scaler     ScalerStatus
	Autoscaler AutoscalerStatus
}

// Observe collects pod count, scaler conditions and replica counts for target.
// It always returns an Observation; fields whose query failed are left unknown (pod count reads zero)
// and the individual failures are returned together as a *multierror.Error.
func Observe(ctx context.Context, inspector Inspector, target Target) (Observation, error) {
	var result *multierror.Error
	obs := Observation{}

	podCount, err := inspector.PodCount(ctx, target.Namespace, target.PodSelector)
	if err != nil {
		result = multierror.Append(result, err)
	}
	obs.State.PodCount = podCount

	if target.ScaledObject != "" {
		obs.Scaler, err = inspector.ScalerStatus(ctx, target.Namespace, target.ScaledObject)
		if err != nil {
			result = multierror.Append(result, err)
		}
		obs.State.Conditions = obs.Scaler.Conditions
	}

	if target.Autoscaler != "" {
		obs.Autoscaler, err = inspector.AutoscalerStatus(ctx, target.Namespace, target.Autoscaler)
		if err != nil {
			result = multierror.Append(result, err)
		}
		obs.State.CurrentReplicas = obs.Autoscaler.CurrentReplicas
		obs.State.DesiredReplicas = obs.Autoscaler.DesiredReplicas
	}

	return obs, result.ErrorOrNil()
}
