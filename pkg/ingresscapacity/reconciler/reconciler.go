// Package reconciler drives the single, serialized reconcile pass that
// sizes and shapes the ingress routing tier: one zone-pinned ingress
// controller per observed worker zone, plus a default multi-zone
// controller, built from the current Kafka workload snapshot and applied
// through the builder's write policy.
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operatorv1 "github.com/openshift/api/operator/v1"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/builder"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/capacity"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/external"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/routerpatch"
	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("reconciler")

const (
	// defaultIngressControllerName is the built-in OpenShift IngressController
	// every cluster carries; its status domain is the source of the cluster's
	// base apps domain.
	defaultIngressControllerName = "default"
	// managedIngressControllerName is this controller's own multi-zone
	// ingress controller.
	managedIngressControllerName = "kas"

	clusterDomainPlaceholder = "cluster.local"

	routeMatchLabelPrefix     = "managedkafka.bf2.org/"
	defaultRouteMatchLabelKey = routeMatchLabelPrefix + "kas-multi-zone"

	// zoneLabel mirrors informer.ZoneLabel; kept local so the Reconciler
	// only depends on InformerCaches, not the informer package itself.
	zoneLabel = "topology.kubernetes.io/zone"
)

// managedLabels marks every ingress controller this controller owns.
var managedLabels = map[string]string{"managedkafka.bf2.org/managed-by": "ingress-capacity-controller"}

// InformerCaches is the subset of the Informer Facade the Reconciler
// depends on: composite readiness, worker node listing, ingress
// controller and router deployment lookups. informer.Manager satisfies
// this directly; tests supply a lightweight fake.
type InformerCaches interface {
	Ready() bool
	WorkerNodes(ctx context.Context) ([]corev1.Node, error)
	GetByKey(namespace, name string) (*operatorv1.IngressController, bool)
	RouterDeployments(ctx context.Context) ([]appsv1.Deployment, error)

	// List and GetByName back the Route Projection's broker-pod and node
	// lookups (see routes.go).
	List() []*corev1.Pod
	GetByName(name string) (*corev1.Node, bool)
}

// Reconciler owns the process-wide route-match-label map and cluster
// domain exposed to external collaborators, and drives the single
// serialized reconcile pass over informer-cached state.
type Reconciler struct {
	informers InformerCaches
	external  external.InformerManager
	client    client.Client
	cfg       config.Config
	patcher   *routerpatch.Patcher

	namespace        string
	endpointStrategy builder.EndpointStrategy

	trigger chan struct{}

	mu               sync.RWMutex
	routeMatchLabels map[string]string
	clusterDomain    string
}

// New constructs a Reconciler. namespace is the ingress-operator namespace
// every managed ingress controller lives in.
func New(informers InformerCaches, em external.InformerManager, c client.Client, cfg config.Config, patcher *routerpatch.Patcher, namespace string, strategy builder.EndpointStrategy) *Reconciler {
	return &Reconciler{
		informers:        informers,
		external:         em,
		client:           c,
		cfg:              cfg,
		patcher:          patcher,
		namespace:        namespace,
		endpointStrategy: strategy,
		trigger:          make(chan struct{}, 1),
		routeMatchLabels: map[string]string{},
		clusterDomain:    clusterDomainPlaceholder,
	}
}

// Trigger requests a reconcile pass. Repeated triggers while one is already
// pending collapse into a single pass, giving the "at most one reconcile in
// flight" guarantee without a full work queue.
func (r *Reconciler) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Run drains trigger requests one at a time until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.trigger:
			if err := r.reconcileOnce(ctx); err != nil {
				log.Error(err, "reconcile pass failed")
			}
		}
	}
}

// GetRouteMatchLabels returns a snapshot of the monotonic route-match-label
// map external collaborators use to learn which labels to stamp on routes.
func (r *Reconciler) GetRouteMatchLabels() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.routeMatchLabels))
	for k, v := range r.routeMatchLabels {
		out[k] = v
	}
	return out
}

// AddToRouteMatchLabels adds one entry. The map only grows.
func (r *Reconciler) AddToRouteMatchLabels(k, v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routeMatchLabels[k] = v
}

// GetClusterDomain returns the base apps domain computed on the most
// recent reconcile pass.
func (r *Reconciler) GetClusterDomain() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clusterDomain
}

func (r *Reconciler) setClusterDomain(domain string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clusterDomain = domain
}

func (r *Reconciler) reconcileOnce(ctx context.Context) error {
	if !r.informers.Ready() {
		log.Info("informer caches not yet synced; skipping reconcile")
		return nil
	}

	clusterDomain := r.computeClusterDomain()
	r.setClusterDomain(clusterDomain)

	nodes, err := r.informers.WorkerNodes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list worker nodes: %w", err)
	}
	zones := distinctZones(nodes)
	workerNodeCount := len(nodes)

	kafkas := r.external.GetKafkas()
	zero := int64(0)
	ingress, err := capacity.BuildByteSummary(kafkas, capacity.ProduceQuota, &zero)
	if err != nil {
		return fmt.Errorf("failed to summarize produce quota: %w", err)
	}
	egress, err := capacity.BuildByteSummary(kafkas, capacity.FetchQuota, &zero)
	if err != nil {
		return fmt.Errorf("failed to summarize fetch quota: %w", err)
	}
	connDemand := capacity.ConnectionDemand(kafkas)

	zoneFraction := 1.0
	if len(zones) > 0 {
		zoneFraction = 1.0 / float64(len(zones))
	}

	for _, zone := range zones {
		r.reconcileZone(ctx, zone, ingress, egress, connDemand, zoneFraction, workerNodeCount, clusterDomain)
	}

	r.reconcileDefault(ctx, connDemand, workerNodeCount, clusterDomain)

	if r.patcher != nil {
		deployments, err := r.informers.RouterDeployments(ctx)
		if err != nil {
			log.Error(err, "failed to list router deployments")
		} else {
			r.patcher.ReconcileAll(ctx, deployments)
		}
	}

	return nil
}

func (r *Reconciler) reconcileZone(ctx context.Context, zone string, ingress, egress capacity.ByteSummary, connDemand int64, zoneFraction float64, workerNodeCount int, clusterDomain string) {
	name := managedIngressControllerName + "-" + zone
	existing, _ := r.informers.GetByKey(r.namespace, name)

	replicas, err := capacity.ReplicasForZone(ingress, egress, connDemand, zoneFraction, r.cfg)
	if err != nil {
		log.Error(err, "cannot satisfy configured ingress throughput ceiling", "zone", zone)
		return
	}

	labelKey := routeMatchLabelPrefix + name
	desired, _ := builder.Build(builder.Options{
		Namespace:                r.namespace,
		Name:                     name,
		Domain:                   name + "." + clusterDomain,
		Existing:                 existing,
		Replicas:                 replicas,
		RouteSelectorMatchLabels: map[string]string{labelKey: "true"},
		TopologyValue:            zone,
		EndpointStrategy:         r.endpointStrategy,
		HardStopAfter:            r.cfg.HardStopAfter,
		ReloadIntervalSeconds:    r.cfg.ReloadIntervalSeconds,
		Labels:                   managedLabels,
	}, workerNodeCount)

	if _, err := builder.Apply(ctx, r.client, existing, desired); err != nil {
		log.Error(err, "failed to apply zone ingress controller", "zone", zone, "name", name)
		return
	}
	r.AddToRouteMatchLabels(labelKey, "true")
}

func (r *Reconciler) reconcileDefault(ctx context.Context, connDemand int64, workerNodeCount int, clusterDomain string) {
	existing, _ := r.informers.GetByKey(r.namespace, managedIngressControllerName)
	replicas := capacity.ReplicasForDefault(connDemand, r.cfg)

	desired, _ := builder.Build(builder.Options{
		Namespace:                r.namespace,
		Name:                     managedIngressControllerName,
		Domain:                   managedIngressControllerName + "." + clusterDomain,
		Existing:                 existing,
		Replicas:                 replicas,
		RouteSelectorMatchLabels: map[string]string{defaultRouteMatchLabelKey: "true"},
		EndpointStrategy:         r.endpointStrategy,
		HardStopAfter:            r.cfg.HardStopAfter,
		ReloadIntervalSeconds:    r.cfg.ReloadIntervalSeconds,
		Labels:                   managedLabels,
	}, workerNodeCount)

	if _, err := builder.Apply(ctx, r.client, existing, desired); err != nil {
		log.Error(err, "failed to apply default ingress controller")
	}
}

// computeClusterDomain derives the cluster's base apps domain from the
// built-in "default" ingress controller's status domain.
func (r *Reconciler) computeClusterDomain() string {
	ic, ok := r.informers.GetByKey(r.namespace, defaultIngressControllerName)
	if !ok || ic.Status.Domain == "" {
		log.Info("default ingress controller status domain unavailable; using placeholder cluster domain")
		return clusterDomainPlaceholder
	}
	return strings.TrimPrefix(ic.Status.Domain, "apps.")
}

// distinctZones returns the distinct non-empty zone label values across
// nodes, sorted for deterministic reconcile ordering.
func distinctZones(nodes []corev1.Node) []string {
	seen := map[string]bool{}
	for _, n := range nodes {
		zone := n.Labels[zoneLabel]
		if zone == "" {
			continue
		}
		seen[zone] = true
	}
	zones := make([]string, 0, len(seen))
	for z := range seen {
		zones = append(zones, z)
	}
	sort.Strings(zones)
	return zones
}
