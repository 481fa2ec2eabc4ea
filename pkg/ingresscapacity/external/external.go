// Package external declares the boundary between this controller and the
// surrounding managed-Kafka operand graph: CRD type definitions, the full
// Kafka reconciliation pipeline, and the Strimzi image-override manager.
// Those live in a different repository and are reached only through the
// interfaces below; the only implementation in this module is the
// placeholder InformerManager in cmd/ingress-capacity-controller.
package external

import (
	corev1 "k8s.io/api/core/v1"

	routev1 "github.com/openshift/api/route/v1"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/types"
)

// InformerManager is the read-only view of managed Kafka state and
// Strimzi-owned namespace resources that the Reconciler and the Route
// Projection read from.
type InformerManager interface {
	// GetKafkas returns every Kafka custom resource currently known to
	// the surrounding operand graph's cache.
	GetKafkas() []types.Kafka

	// GetRoutesInNamespace returns every Route in ns, used to locate the
	// per-broker routes for a managed Kafka instance.
	GetRoutesInNamespace(ns string) []*routev1.Route

	// GetLocalService returns the named Service in ns, whose selector is
	// used to find the broker pod (and so the zone) behind a route when
	// building a ManagedKafkaRoute.
	GetLocalService(ns, name string) (*corev1.Service, error)

	// ResyncManagedKafka requests that the surrounding operand graph
	// re-evaluate its managed Kafka state. Nothing in this module calls
	// it.
	ResyncManagedKafka()
}

// StrimziManager resolves related container images for a given Strimzi
// version, consumed by the sibling override manager rather than by any
// component in this module.
type StrimziManager interface {
	GetRelatedImage(strimziVersion, component string) (string, bool)
}
