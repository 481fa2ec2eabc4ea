// Package route projects the external route endpoints a managed Kafka
// instance's clients should use, by combining the ingress controller cache
// with the Kafka's broker routes.
package route

import (
	"regexp"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"

	operatorv1 "github.com/openshift/api/operator/v1"
	routev1 "github.com/openshift/api/route/v1"

	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("route")

// brokerRouteName matches the route name of a broker route, e.g.
// "my-cluster-kafka-0".
var brokerRouteName = regexp.MustCompile(`.+-kafka-\d+$`)

const defaultIngressControllerName = "kas"

// ManagedKafkaRoute is one external route endpoint a managed Kafka's
// clients should use.
type ManagedKafkaRoute struct {
	Name         string
	Prefix       string
	RouterDomain string
}

// IngressControllers looks up an ingress controller by name in the
// operator's namespace.
type IngressControllers interface {
	GetByKey(namespace, name string) (*operatorv1.IngressController, bool)
}

// Routes lists the routes visible in a namespace.
type Routes interface {
	ListInNamespace(namespace string) []*routev1.Route
}

// Services looks up a locally cached service.
type Services interface {
	GetLocalService(namespace, name string) (*corev1.Service, bool)
}

// BrokerPods lists the cached broker pods.
type BrokerPods interface {
	List() []*corev1.Pod
}

// Nodes looks up a cached node by name.
type Nodes interface {
	GetByName(name string) (*corev1.Node, bool)
}

// Caches bundles the read-only collaborators route projection needs.
type Caches struct {
	IngressControllers IngressControllers
	Routes             Routes
	Services           Services
	BrokerPods         BrokerPods
	Nodes              Nodes

	// Namespace is the ingress-operator namespace ingress controllers live
	// in.
	Namespace string
}

// owner identifies the object a route's ownerReferences points at.
type owner struct {
	Kind string
	Name string
}

// GetManagedKafkaRoutesFor projects the external route endpoints for a
// managed Kafka instance's namespace/name and the Kafka cluster resource
// (same Kind+Name) that owns its broker routes.
func GetManagedKafkaRoutesFor(caches Caches, kafkaNamespace, kafkaName, kafkaClusterName string) []ManagedKafkaRoute {
	multiZoneDomain := ingressControllerDomain(caches, defaultIngressControllerName)

	routes := []ManagedKafkaRoute{
		{Name: "bootstrap", Prefix: "", RouterDomain: multiZoneDomain},
		{Name: "admin-server", Prefix: "admin-server", RouterDomain: multiZoneDomain},
	}

	owners := []owner{{Kind: "Kafka", Name: kafkaClusterName}, {Kind: "ManagedKafka", Name: kafkaName}}

	for _, r := range caches.Routes.ListInNamespace(kafkaNamespace) {
		if !ownedByAny(r, owners) {
			continue
		}
		if !brokerRouteName.MatchString(r.Name) {
			continue
		}

		domain := resolveBrokerDomain(caches, r)
		prefix := stripBootstrapSuffix(r.Spec.Host, multiZoneDomain)

		routes = append(routes, ManagedKafkaRoute{
			Name:         prefix,
			Prefix:       prefix,
			RouterDomain: domain,
		})
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].Name < routes[j].Name })
	return routes
}

func ingressControllerDomain(caches Caches, name string) string {
	ic, ok := caches.IngressControllers.GetByKey(caches.Namespace, name)
	if !ok {
		return ""
	}
	domain := ic.Status.Domain
	if domain == "" {
		domain = ic.Spec.Domain
	}
	if domain == "" {
		return ""
	}
	return "ingresscontroller." + domain
}

// stripBootstrapSuffix removes the trailing "-<bootstrapDomain>" (the
// "ingresscontroller." prefix stripped back off) from a broker route host,
// leaving the per-broker prefix.
func stripBootstrapSuffix(host, multiZoneDomain string) string {
	bootstrapDomain := strings.TrimPrefix(multiZoneDomain, "ingresscontroller.")
	suffix := "-" + bootstrapDomain
	if bootstrapDomain != "" && strings.HasSuffix(host, suffix) {
		return strings.TrimSuffix(host, suffix)
	}
	return host
}

func ownedByAny(r *routev1.Route, owners []owner) bool {
	for _, ref := range r.OwnerReferences {
		for _, o := range owners {
			if ref.Kind == o.Kind && ref.Name == o.Name {
				return true
			}
		}
	}
	return false
}

// resolveBrokerDomain resolves the zone of the broker a route points at and
// returns that zone's ingress controller domain. An unresolvable hop
// (missing service, pod, or node) yields an empty domain, per spec.
func resolveBrokerDomain(caches Caches, r *routev1.Route) string {
	svc, ok := caches.Services.GetLocalService(r.Namespace, r.Spec.To.Name)
	if !ok {
		log.Info("unresolvable route backend service", "route", r.Name, "namespace", r.Namespace)
		return ""
	}

	pod, ok := findBrokerPod(caches.BrokerPods.List(), svc.Spec.Selector)
	if !ok {
		log.Info("no broker pod matches route backend selector", "route", r.Name, "namespace", r.Namespace)
		return ""
	}

	if pod.Spec.NodeName == "" {
		return ""
	}
	node, ok := caches.Nodes.GetByName(pod.Spec.NodeName)
	if !ok {
		return ""
	}
	zone := node.Labels[zoneLabelKey]
	if zone == "" {
		return ""
	}

	return ingressControllerDomain(caches, "kas-"+zone)
}

// zoneLabelKey is the standard topology zone label.
const zoneLabelKey = "topology.kubernetes.io/zone"

// findBrokerPod returns the first pod whose labels are a superset of
// selector.
func findBrokerPod(pods []*corev1.Pod, selector map[string]string) (*corev1.Pod, bool) {
	if len(selector) == 0 {
		return nil, false
	}
	for _, pod := range pods {
		if labelsSuperset(pod.Labels, selector) {
			return pod, true
		}
	}
	return nil, false
}

func labelsSuperset(labels, selector map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}
