// Package operator wires the ingress capacity controller's components —
// the Informer Facade, Reconciler, Router Deployment Patcher, and Periodic
// Trigger — onto a controller-runtime manager and drives them until
// shutdown, following the same "New(...) wires dependencies, Start(ctx)
// runs them" shape the surrounding ingress operator uses for its own
// Operator type.
package operator

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/runtime"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/manager"

	operatorv1 "github.com/openshift/api/operator/v1"
	routev1 "github.com/openshift/api/route/v1"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/builder"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/external"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/informer"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/reconciler"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/routerpatch"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/schedule"
	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("init")

func init() {
	logf.SetRuntimeLogger(log)
}

// Config is the operator-level wiring configuration: which namespaces the
// managed ingress controllers and router deployments live in, the
// capacity model's tunables, and the endpoint publishing shape to stamp
// onto every ingress controller this process manages.
type Config struct {
	// Namespace is the ingress-operator namespace, e.g.
	// "openshift-ingress-operator".
	Namespace string
	// RouterNamespace is the ingress-router namespace, e.g.
	// "openshift-ingress".
	RouterNamespace string

	Capacity         config.Config
	EndpointStrategy builder.EndpointStrategy
}

// GetScheme returns the runtime.Scheme this operator's manager must use:
// the client-go built-ins plus the OpenShift operator and route APIs.
func GetScheme() (*runtime.Scheme, error) {
	scheme := runtime.NewScheme()
	if err := clientgoscheme.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := operatorv1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	if err := routev1.AddToScheme(scheme); err != nil {
		return nil, err
	}
	return scheme, nil
}

// Operator is the scaffolding for the ingress capacity controller process.
// It wires the Informer Facade, Reconciler, Router Deployment Patcher and
// Periodic Trigger together.
type Operator struct {
	manager manager.Manager

	informers  *informer.Manager
	reconciler *reconciler.Reconciler
	patcher    *routerpatch.Patcher
	scheduler  *schedule.PeriodicTrigger
}

// New creates (but does not start) the operator. em is the surrounding
// fleet-shard operator's InformerManager implementation (out of scope for
// this module; see pkg/ingresscapacity/external), supplying Kafka workload
// snapshots and route/service lookups.
func New(kubeConfig *rest.Config, cfg Config, em external.InformerManager) (*Operator, error) {
	scheme, err := GetScheme()
	if err != nil {
		return nil, fmt.Errorf("failed to build manager scheme: %w", err)
	}

	mgr, err := manager.New(kubeConfig, manager.Options{Scheme: scheme})
	if err != nil {
		return nil, fmt.Errorf("failed to create operator manager: %w", err)
	}

	informers := informer.NewManager(mgr, cfg.Namespace, cfg.RouterNamespace)
	patcher := routerpatch.New(mgr.GetClient(), informers, cfg.Capacity.Resources, cfg.Capacity.IngressContainerCommand)
	rec := reconciler.New(informers, em, mgr.GetClient(), cfg.Capacity, patcher, cfg.Namespace, cfg.EndpointStrategy)
	sched := schedule.New(rec)

	return &Operator{
		manager:    mgr,
		informers:  informers,
		reconciler: rec,
		patcher:    patcher,
		scheduler:  sched,
	}, nil
}

// Start registers informer event handlers, starts the manager, the
// periodic trigger, and the reconcile loop, then blocks until ctx is
// cancelled or the manager exits with an error.
func (o *Operator) Start(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- o.manager.Start(ctx)
	}()

	if !o.manager.GetCache().WaitForCacheSync(ctx) {
		return fmt.Errorf("failed to sync manager cache before starting informers")
	}

	if err := o.informers.Start(ctx); err != nil {
		return fmt.Errorf("failed to start informers: %w", err)
	}

	if err := o.wireEventHandlers(); err != nil {
		return fmt.Errorf("failed to register informer event handlers: %w", err)
	}

	o.scheduler.Start()
	defer o.scheduler.Stop()

	go o.reconciler.Run(ctx)
	o.reconciler.Trigger()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errChan:
		return err
	}
}

func (o *Operator) wireEventHandlers() error {
	triggerHandler := informer.Handler{
		OnAdd:    func(interface{}) { o.reconciler.Trigger() },
		OnUpdate: func(interface{}, interface{}) { o.reconciler.Trigger() },
		OnDelete: func(interface{}) { o.reconciler.Trigger() },
	}
	if err := o.informers.AddNodeEventHandler(triggerHandler); err != nil {
		return err
	}
	if err := o.informers.AddIngressControllerEventHandler(triggerHandler); err != nil {
		return err
	}

	// Broker pod adds trigger a reconcile; updates and deletes do not
	// (spec.md §4.5).
	if err := o.informers.AddBrokerPodEventHandler(informer.Handler{
		OnAdd: func(interface{}) { o.reconciler.Trigger() },
	}); err != nil {
		return err
	}

	return o.informers.AddRouterDeploymentEventHandler(informer.Handler{
		OnAdd:    o.onDeploymentEvent,
		OnUpdate: func(_, newObj interface{}) { o.onDeploymentEvent(newObj) },
	})
}

func (o *Operator) onDeploymentEvent(obj interface{}) {
	d, ok := obj.(*appsv1.Deployment)
	if !ok {
		return
	}
	o.patcher.OnDeploymentEvent(d)
}
