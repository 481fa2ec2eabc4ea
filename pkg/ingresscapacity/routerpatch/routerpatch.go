// Package routerpatch enforces resource requirements and a custom
// container command on router deployments owned by the ingress operator,
// a workaround for knobs the IngressController API does not expose
// directly. It debounces bursts of informer events into a single edit per
// deployment.
package routerpatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
)

var log = logf.Logger.WithName("routerpatch")

// ingressControllerLabel identifies the ingress controller a router
// deployment belongs to; eligible deployments carry a value prefixed with
// "kas" (this controller's naming convention).
const ingressControllerLabel = "ingresscontroller.operator.openshift.io/owning-ingresscontroller"

// debounceDelay is the window events are coalesced over before a patch is
// issued.
const debounceDelay = 2 * time.Second

// DeploymentGetter resolves a cached router deployment by key, re-checked
// at debounce time to skip keys that have since gone stale.
type DeploymentGetter interface {
	GetDeploymentByKey(namespace, name string) (*appsv1.Deployment, bool)
}

// Patcher debounces eligible router deployment events and overwrites the
// sole container's resources and command to match the configured
// overrides.
type Patcher struct {
	client    client.Client
	deploys   DeploymentGetter
	resources config.ResourceOverrides
	command   []string

	mu      sync.Mutex
	pending map[types.NamespacedName]struct{}
	timer   *time.Timer
}

// New constructs a Patcher. It returns nil if overrides carries none of the
// four resource knobs, since the patcher must stay inactive in that case.
func New(c client.Client, deploys DeploymentGetter, overrides config.ResourceOverrides, command []string) *Patcher {
	if !overrides.Active() {
		return nil
	}
	return &Patcher{
		client:    c,
		deploys:   deploys,
		resources: overrides,
		command:   command,
		pending:   map[types.NamespacedName]struct{}{},
	}
}

// OnDeploymentEvent is the informer callback for router deployment
// add/update events. Ineligible deployments are declined without entering
// the debounce set.
func (p *Patcher) OnDeploymentEvent(d *appsv1.Deployment) {
	if p == nil || !shouldPatch(d, p.resources, p.command) {
		return
	}
	p.enqueue(types.NamespacedName{Namespace: d.Namespace, Name: d.Name})
}

// ReconcileAll re-evaluates every currently cached router deployment,
// enqueuing any that are eligible. The Reconciler calls this once per
// pass to drive pending edits to steady state even if an event was missed.
func (p *Patcher) ReconcileAll(ctx context.Context, deployments []appsv1.Deployment) {
	if p == nil {
		return
	}
	for i := range deployments {
		p.OnDeploymentEvent(&deployments[i])
	}
}

func (p *Patcher) enqueue(key types.NamespacedName) {
	p.mu.Lock()
	defer p.mu.Unlock()

	wasEmpty := len(p.pending) == 0
	p.pending[key] = struct{}{}

	if wasEmpty {
		p.timer = time.AfterFunc(debounceDelay, p.drain)
	}
}

// drain atomically empties the pending set and re-validates each key
// against the current cache before issuing an edit, since the deployment
// may have changed (or disappeared) during the debounce window.
func (p *Patcher) drain() {
	p.mu.Lock()
	keys := make([]types.NamespacedName, 0, len(p.pending))
	for k := range p.pending {
		keys = append(keys, k)
	}
	p.pending = map[types.NamespacedName]struct{}{}
	p.mu.Unlock()

	ctx := context.Background()
	for _, key := range keys {
		d, ok := p.deploys.GetDeploymentByKey(key.Namespace, key.Name)
		if !ok || !shouldPatch(d, p.resources, p.command) {
			continue
		}
		if err := p.patch(ctx, d); err != nil {
			log.Error(err, "failed to patch router deployment", "namespace", key.Namespace, "name", key.Name)
		}
	}
}

func (p *Patcher) patch(ctx context.Context, d *appsv1.Deployment) error {
	updated := d.DeepCopy()
	container := &updated.Spec.Template.Spec.Containers[0]
	container.Resources = desiredResources(p.resources)
	container.Command = p.command

	// Diff before updating because the client may mutate the object.
	diff := cmp.Diff(d, updated, cmpopts.EquateEmpty())

	if err := p.client.Update(ctx, updated); err != nil {
		if apierrors.IsConflict(err) {
			log.Info("router deployment changed concurrently; will retry on next event", "namespace", d.Namespace, "name", d.Name)
			return nil
		}
		return err
	}
	log.Info("patched router deployment", "namespace", d.Namespace, "name", d.Name, "diff", diff)
	return nil
}

// shouldPatch implements spec's eligibility predicate.
func shouldPatch(d *appsv1.Deployment, overrides config.ResourceOverrides, command []string) bool {
	if !strings.HasPrefix(d.Labels[ingressControllerLabel], "kas") {
		return false
	}
	containers := d.Spec.Template.Spec.Containers
	if len(containers) != 1 {
		log.Info("router deployment does not have exactly one container; declining to patch", "namespace", d.Namespace, "name", d.Name)
		return false
	}

	want := desiredResources(overrides)
	have := containers[0].Resources
	if !resourcesEqual(have, want) {
		return true
	}
	return !commandEqual(containers[0].Command, command)
}

func desiredResources(overrides config.ResourceOverrides) corev1.ResourceRequirements {
	req := corev1.ResourceRequirements{
		Limits:   corev1.ResourceList{},
		Requests: corev1.ResourceList{},
	}
	if overrides.LimitCPU != nil {
		req.Limits[corev1.ResourceCPU] = *overrides.LimitCPU
	}
	if overrides.LimitMemory != nil {
		req.Limits[corev1.ResourceMemory] = *overrides.LimitMemory
	}
	if overrides.RequestCPU != nil {
		req.Requests[corev1.ResourceCPU] = *overrides.RequestCPU
	}
	if overrides.RequestMemory != nil {
		req.Requests[corev1.ResourceMemory] = *overrides.RequestMemory
	}
	if len(req.Limits) == 0 {
		req.Limits = nil
	}
	if len(req.Requests) == 0 {
		req.Requests = nil
	}
	return req
}

func resourcesEqual(a, b corev1.ResourceRequirements) bool {
	return quantityMapEqual(a.Limits, b.Limits) && quantityMapEqual(a.Requests, b.Requests)
}

func quantityMapEqual(a, b corev1.ResourceList) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || v.Cmp(other) != 0 {
			return false
		}
	}
	return true
}

func commandEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
