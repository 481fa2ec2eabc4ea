package informer

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"sigs.k8s.io/controller-runtime/pkg/cache"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	operatorv1 "github.com/openshift/api/operator/v1"

	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("informer")

// Label and annotation constants shared across the facade and its
// consumers (spec.md §6).
const (
	WorkerNodeLabel = "node-role.kubernetes.io/worker"
	InfraNodeLabel  = "node-role.kubernetes.io/infra"
	ZoneLabel       = "topology.kubernetes.io/zone"

	brokerManagedByLabel = "app.kubernetes.io/managed-by"
	brokerManagedByValue = "strimzi-cluster-operator"
	brokerNameLabel      = "app.kubernetes.io/name"
	brokerNameValue      = "kafka"

	// OwningIngressControllerLabel identifies the ingress controller a
	// router deployment belongs to.
	OwningIngressControllerLabel = "ingresscontroller.operator.openshift.io/owning-ingresscontroller"
)

// Manager is the Informer Facade: a uniform, ready-gated cache over the
// four resource kinds this controller watches directly, built on the
// operator manager's shared controller-runtime cache (the same cache the
// teacher's own operator.go waits on via mgr.GetCache().WaitForCacheSync).
type Manager struct {
	client client.Client
	cache  cache.Cache

	operatorNamespace string
	routerNamespace   string

	nodeInformer, podInformer, icInformer, deployInformer cache.Informer
}

// NewManager constructs a Manager against mgr's shared cache. Call Start
// once the manager's cache is running to begin watching all four kinds.
func NewManager(mgr manager.Manager, operatorNamespace, routerNamespace string) *Manager {
	return &Manager{
		client:            mgr.GetClient(),
		cache:             mgr.GetCache(),
		operatorNamespace: operatorNamespace,
		routerNamespace:   routerNamespace,
	}
}

// Start registers informers for every watched kind. It must be called
// after the manager's cache has started.
func (m *Manager) Start(ctx context.Context) error {
	var err error
	if m.nodeInformer, err = m.cache.GetInformer(ctx, &corev1.Node{}); err != nil {
		return fmt.Errorf("failed to get node informer: %w", err)
	}
	if m.podInformer, err = m.cache.GetInformer(ctx, &corev1.Pod{}); err != nil {
		return fmt.Errorf("failed to get pod informer: %w", err)
	}
	if m.icInformer, err = m.cache.GetInformer(ctx, &operatorv1.IngressController{}); err != nil {
		return fmt.Errorf("failed to get ingresscontroller informer: %w", err)
	}
	if m.deployInformer, err = m.cache.GetInformer(ctx, &appsv1.Deployment{}); err != nil {
		return fmt.Errorf("failed to get deployment informer: %w", err)
	}
	return nil
}

// Ready reports whether every watched cache has completed its initial
// list. The Reconciler must gate on this before computing desired state.
func (m *Manager) Ready() bool {
	return m.nodeInformer != nil && m.nodeInformer.HasSynced() &&
		m.podInformer != nil && m.podInformer.HasSynced() &&
		m.icInformer != nil && m.icInformer.HasSynced() &&
		m.deployInformer != nil && m.deployInformer.HasSynced()
}

// AddNodeEventHandler registers h against node events.
func (m *Manager) AddNodeEventHandler(h Handler) error {
	_, err := m.nodeInformer.AddEventHandler(Filter(func(obj interface{}) bool {
		node, ok := obj.(*corev1.Node)
		return ok && isWorkerNode(node.Labels)
	}, h))
	return err
}

// AddBrokerPodEventHandler registers h against broker pod events.
func (m *Manager) AddBrokerPodEventHandler(h Handler) error {
	_, err := m.podInformer.AddEventHandler(Filter(func(obj interface{}) bool {
		pod, ok := obj.(*corev1.Pod)
		return ok && isBrokerPod(pod.Labels)
	}, h))
	return err
}

// AddIngressControllerEventHandler registers h against ingress controller
// events in the operator namespace.
func (m *Manager) AddIngressControllerEventHandler(h Handler) error {
	_, err := m.icInformer.AddEventHandler(Filter(func(obj interface{}) bool {
		ic, ok := obj.(*operatorv1.IngressController)
		return ok && ic.Namespace == m.operatorNamespace
	}, h))
	return err
}

// AddRouterDeploymentEventHandler registers h against router deployment
// events in the router namespace.
func (m *Manager) AddRouterDeploymentEventHandler(h Handler) error {
	_, err := m.deployInformer.AddEventHandler(Filter(func(obj interface{}) bool {
		d, ok := obj.(*appsv1.Deployment)
		return ok && isRouterDeployment(d, m.routerNamespace)
	}, h))
	return err
}

// WorkerNodes returns every cached node labelled as a worker and not as
// infra.
func (m *Manager) WorkerNodes(ctx context.Context) ([]corev1.Node, error) {
	var list corev1.NodeList
	if err := m.cache.List(ctx, &list); err != nil {
		return nil, err
	}
	var out []corev1.Node
	for _, n := range list.Items {
		if isWorkerNode(n.Labels) {
			out = append(out, n)
		}
	}
	return out, nil
}

// GetByName returns a cached node by name, satisfying route.Nodes.
func (m *Manager) GetByName(name string) (*corev1.Node, bool) {
	var node corev1.Node
	if err := m.cache.Get(context.Background(), client.ObjectKey{Name: name}, &node); err != nil {
		return nil, false
	}
	return &node, true
}

// BrokerPods returns every cached broker pod.
func (m *Manager) BrokerPods(ctx context.Context) ([]corev1.Pod, error) {
	var list corev1.PodList
	if err := m.cache.List(ctx, &list); err != nil {
		return nil, err
	}
	var out []corev1.Pod
	for _, p := range list.Items {
		if isBrokerPod(p.Labels) {
			out = append(out, p)
		}
	}
	return out, nil
}

// List returns every cached broker pod as pointers, satisfying
// route.BrokerPods.
func (m *Manager) List() []*corev1.Pod {
	pods, err := m.BrokerPods(context.Background())
	if err != nil {
		log.Error(err, "failed to list broker pods")
		return nil
	}
	out := make([]*corev1.Pod, len(pods))
	for i := range pods {
		out[i] = &pods[i]
	}
	return out
}

// GetByKey returns the ingress controller namespace/name, and
// whether it was found. Satisfies route.IngressControllers.
func (m *Manager) GetByKey(namespace, name string) (*operatorv1.IngressController, bool) {
	var ic operatorv1.IngressController
	if err := m.cache.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: name}, &ic); err != nil {
		return nil, false
	}
	return &ic, true
}

// RouterDeployments returns every cached router deployment.
func (m *Manager) RouterDeployments(ctx context.Context) ([]appsv1.Deployment, error) {
	var list appsv1.DeploymentList
	if err := m.cache.List(ctx, &list, client.InNamespace(m.routerNamespace)); err != nil {
		return nil, err
	}
	var out []appsv1.Deployment
	for _, d := range list.Items {
		if isRouterDeployment(&d, m.routerNamespace) {
			out = append(out, d)
		}
	}
	return out, nil
}

// GetDeploymentByKey returns the cached router deployment by namespace/name.
func (m *Manager) GetDeploymentByKey(namespace, name string) (*appsv1.Deployment, bool) {
	var d appsv1.Deployment
	if err := m.cache.Get(context.Background(), client.ObjectKey{Namespace: namespace, Name: name}, &d); err != nil {
		return nil, false
	}
	return &d, true
}

// Client exposes the underlying client.Client for callers that need to
// write (informer caches are read-only).
func (m *Manager) Client() client.Client { return m.client }

func isWorkerNode(labels map[string]string) bool {
	_, worker := labels[WorkerNodeLabel]
	_, infra := labels[InfraNodeLabel]
	return worker && !infra
}

func isBrokerPod(labels map[string]string) bool {
	return labels[brokerManagedByLabel] == brokerManagedByValue && labels[brokerNameLabel] == brokerNameValue
}

func isRouterDeployment(d *appsv1.Deployment, routerNamespace string) bool {
	if d.Namespace != routerNamespace {
		return false
	}
	_, ok := d.Labels[OwningIngressControllerLabel]
	return ok
}
