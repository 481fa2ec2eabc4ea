package reconciler

import (
	corev1 "k8s.io/api/core/v1"

	routev1 "github.com/openshift/api/route/v1"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/route"
)

// routesAdapter satisfies route.Routes by delegating to the external
// InformerManager's namespace-scoped route listing.
type routesAdapter struct {
	external interface {
		GetRoutesInNamespace(ns string) []*routev1.Route
	}
}

func (a routesAdapter) ListInNamespace(namespace string) []*routev1.Route {
	return a.external.GetRoutesInNamespace(namespace)
}

// servicesAdapter satisfies route.Services by delegating to the external
// InformerManager's service lookup, collapsing its error return into the
// not-found boolean route.Services expects.
type servicesAdapter struct {
	external interface {
		GetLocalService(ns, name string) (*corev1.Service, error)
	}
}

func (a servicesAdapter) GetLocalService(namespace, name string) (*corev1.Service, bool) {
	svc, err := a.external.GetLocalService(namespace, name)
	if err != nil || svc == nil {
		return nil, false
	}
	return svc, true
}

// GetManagedKafkaRoutesFor projects the external route endpoints for one
// managed Kafka instance, satisfying this controller's exposed
// getManagedKafkaRoutesFor interface.
func (r *Reconciler) GetManagedKafkaRoutesFor(kafkaNamespace, kafkaName, kafkaClusterName string) []route.ManagedKafkaRoute {
	caches := route.Caches{
		IngressControllers: r.informers,
		Routes:             routesAdapter{external: r.external},
		Services:           servicesAdapter{external: r.external},
		BrokerPods:         r.informers,
		Nodes:              r.informers,
		Namespace:          r.namespace,
	}
	return route.GetManagedKafkaRoutesFor(caches, kafkaNamespace, kafkaName, kafkaClusterName)
}
