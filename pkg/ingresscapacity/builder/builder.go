// Package builder constructs the desired IngressController for a zone or
// the default multi-zone ingress controller, preserving any fields the
// core does not own, and decides whether a write is actually needed.
package builder

import (
	"encoding/json"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"

	operatorv1 "github.com/openshift/api/operator/v1"

	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("builder")

const (
	// TopologyKey is the standard topology zone label.
	TopologyKey = "topology.kubernetes.io/zone"
	// WorkerNodeLabel pins node placement to worker nodes.
	WorkerNodeLabel = "node-role.kubernetes.io/worker"
	// HardStopAfterAnnotation bounds how long a connection may be held
	// open across a rolling router restart.
	HardStopAfterAnnotation = "ingress.operator.openshift.io/hard-stop-after"

	// minReplicaReduction is the largest replica drop that hysteresis holds
	// back in a single reconcile pass (spec.md invariant 3).
	minReplicaReduction = 1
	// haFloorNodeCount is the worker-node-count threshold above which a
	// single computed replica is raised to two (spec.md invariant 4).
	haFloorNodeCount = 3
	// haFloorReplicas is the replica count enforced above haFloorNodeCount.
	haFloorReplicas = 2

	reloadIntervalKey = "reloadInterval"
)

// EndpointStrategy selects the endpoint publishing strategy shape the
// builder stamps onto every ingress controller it manages.
type EndpointStrategy int

const (
	// EndpointStrategyLoadBalancerExternal is a plain external load
	// balancer with no cloud-provider-specific parameters.
	EndpointStrategyLoadBalancerExternal EndpointStrategy = iota
	// EndpointStrategyLoadBalancerExternalNLB requests an AWS Network Load
	// Balancer.
	EndpointStrategyLoadBalancerExternalNLB
)

// Options describes one desired ingress controller.
type Options struct {
	Namespace string
	Name      string
	Domain    string

	// Existing is the currently observed ingress controller, or nil if
	// none exists yet.
	Existing *operatorv1.IngressController

	// Replicas is the freshly computed replica count, before hysteresis
	// and the HA floor are applied.
	Replicas int

	// RouteSelectorMatchLabels is the routeSelector.matchLabels map this
	// controller should select routes by.
	RouteSelectorMatchLabels map[string]string

	// TopologyValue, when non-empty, pins the controller to workers in
	// that zone.
	TopologyValue string

	EndpointStrategy EndpointStrategy

	// HardStopAfter is the configured annotation value; blank removes the
	// annotation.
	HardStopAfter string

	// ReloadIntervalSeconds, when > 0, is stamped into the unsupported
	// config overrides bag. Otherwise that one key is removed.
	ReloadIntervalSeconds int

	Labels map[string]string
}

// Build constructs the desired IngressController, preserving foreign
// fields from Options.Existing, and returns both the effective replica
// count (after hysteresis and the HA floor) and the object itself.
func Build(opts Options, workerNodeCount int) (*operatorv1.IngressController, int) {
	var desired *operatorv1.IngressController
	if opts.Existing != nil {
		desired = opts.Existing.DeepCopy()
	} else {
		desired = &operatorv1.IngressController{}
	}

	replicas := applyHysteresis(opts.Existing, opts.Replicas)
	replicas = applyHAFloor(replicas, workerNodeCount)

	// Set only the fields this builder owns, in place, so foreign
	// ObjectMeta fields carried on opts.Existing (CreationTimestamp, UID,
	// Generation, OwnerReferences, ...) survive untouched.
	desired.Name = opts.Name
	desired.Namespace = opts.Namespace
	desired.Labels = mergeLabels(desired.Labels, opts.Labels)

	r := int32(replicas)
	desired.Spec.Domain = opts.Domain
	desired.Spec.Replicas = &r
	desired.Spec.RouteSelector = &metav1.LabelSelector{MatchLabels: opts.RouteSelectorMatchLabels}
	desired.Spec.EndpointPublishingStrategy = endpointPublishingStrategy(opts.EndpointStrategy)

	if opts.TopologyValue != "" {
		desired.Spec.NodePlacement = &operatorv1.NodePlacement{
			NodeSelector: &metav1.LabelSelector{
				MatchLabels: map[string]string{
					TopologyKey:     opts.TopologyValue,
					WorkerNodeLabel: "",
				},
			},
		}
	} else {
		desired.Spec.NodePlacement = nil
	}

	applyAnnotations(desired, opts.HardStopAfter)
	applyUnsupportedOverrides(desired, opts.ReloadIntervalSeconds)

	return desired, replicas
}

// applyHysteresis implements spec.md invariant 3/testable-property 2: a
// computed count at most minReplicaReduction below the prior count is
// raised back to the prior count; larger drops and any increase apply as
// computed.
func applyHysteresis(existing *operatorv1.IngressController, computed int) int {
	if existing == nil || existing.Spec.Replicas == nil {
		return computed
	}
	prior := int(*existing.Spec.Replicas)
	if computed < prior && prior-computed <= minReplicaReduction {
		return prior
	}
	return computed
}

// applyHAFloor implements spec.md invariant 4.
func applyHAFloor(replicas, workerNodeCount int) int {
	if replicas == 1 && workerNodeCount > haFloorNodeCount {
		return haFloorReplicas
	}
	return replicas
}

func endpointPublishingStrategy(strategy EndpointStrategy) *operatorv1.EndpointPublishingStrategy {
	lb := &operatorv1.LoadBalancerStrategy{Scope: operatorv1.ExternalLoadBalancer}
	if strategy == EndpointStrategyLoadBalancerExternalNLB {
		lb.ProviderParameters = &operatorv1.ProviderLoadBalancerParameters{
			Type: operatorv1.AWSLoadBalancerProvider,
			AWS: &operatorv1.AWSLoadBalancerParameters{
				Type: operatorv1.AWSNetworkLoadBalancer,
			},
		}
	}
	return &operatorv1.EndpointPublishingStrategy{
		Type:         operatorv1.LoadBalancerServiceStrategyType,
		LoadBalancer: lb,
	}
}

func applyAnnotations(desired *operatorv1.IngressController, hardStopAfter string) {
	if hardStopAfter == "" {
		if desired.Annotations != nil {
			delete(desired.Annotations, HardStopAfterAnnotation)
		}
		return
	}
	if desired.Annotations == nil {
		desired.Annotations = map[string]string{}
	}
	desired.Annotations[HardStopAfterAnnotation] = hardStopAfter
}

// applyUnsupportedOverrides preserves every existing key in the
// unsupported-overrides raw-extension bag, touching only reloadInterval.
func applyUnsupportedOverrides(desired *operatorv1.IngressController, reloadIntervalSeconds int) {
	overrides := map[string]interface{}{}
	if raw := desired.Spec.UnsupportedConfigOverrides.Raw; len(raw) > 0 {
		// Best effort: a non-object raw payload is left untouched.
		if err := json.Unmarshal(raw, &overrides); err != nil {
			log.Info("unsupported config overrides is not a JSON object; leaving as-is", "ingresscontroller", desired.Name)
			return
		}
	}

	if reloadIntervalSeconds > 0 {
		overrides[reloadIntervalKey] = reloadIntervalSeconds
	} else {
		delete(overrides, reloadIntervalKey)
	}

	if len(overrides) == 0 {
		desired.Spec.UnsupportedConfigOverrides = runtime.RawExtension{}
		return
	}

	encoded, err := json.Marshal(overrides)
	if err != nil {
		log.Info("failed to marshal unsupported config overrides", "ingresscontroller", desired.Name, "error", err)
		return
	}
	desired.Spec.UnsupportedConfigOverrides = runtime.RawExtension{Raw: encoded}
}

func mergeLabels(existing, wanted map[string]string) map[string]string {
	merged := map[string]string{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range wanted {
		merged[k] = v
	}
	return merged
}
