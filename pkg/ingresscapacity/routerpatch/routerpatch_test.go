package routerpatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
)

func quantity(v string) *resource.Quantity {
	q := resource.MustParse(v)
	return &q
}

func overridesFixture() config.ResourceOverrides {
	return config.ResourceOverrides{
		LimitCPU:    quantity("500m"),
		LimitMemory: quantity("512Mi"),
	}
}

func testDeployment(resources corev1.ResourceRequirements, command []string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: "openshift-ingress",
			Name:      "router-kas-a",
			Labels:    map[string]string{ingressControllerLabel: "kas-a"},
		},
		Spec: appsv1.DeploymentSpec{
			Template: corev1.PodTemplateSpec{
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{
						{Name: "router", Resources: resources, Command: command},
					},
				},
			},
		},
	}
}

// fakeGetter always returns the latest copy handed to it, mimicking the
// informer cache the patcher re-checks keys against at debounce time.
type fakeGetter struct {
	mu         sync.Mutex
	deployment *appsv1.Deployment
}

func (g *fakeGetter) GetDeploymentByKey(namespace, name string) (*appsv1.Deployment, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deployment == nil {
		return nil, false
	}
	return g.deployment.DeepCopy(), true
}

func TestShouldPatch_DeclinesNonKasLabel(t *testing.T) {
	overrides := overridesFixture()
	d := testDeployment(corev1.ResourceRequirements{}, nil)
	d.Labels[ingressControllerLabel] = "default"
	assert.False(t, shouldPatch(d, overrides, []string{"router"}))
}

func TestShouldPatch_DeclinesMultiContainer(t *testing.T) {
	overrides := overridesFixture()
	d := testDeployment(corev1.ResourceRequirements{}, nil)
	d.Spec.Template.Spec.Containers = append(d.Spec.Template.Spec.Containers, corev1.Container{Name: "sidecar"})
	assert.False(t, shouldPatch(d, overrides, []string{"router"}))
}

func TestShouldPatch_DeclinesWhenAlreadyDesired(t *testing.T) {
	overrides := overridesFixture()
	want := desiredResources(overrides)
	d := testDeployment(want, []string{"router"})
	assert.False(t, shouldPatch(d, overrides, []string{"router"}))
}

func TestShouldPatch_DetectsCommandMismatch(t *testing.T) {
	overrides := overridesFixture()
	want := desiredResources(overrides)
	d := testDeployment(want, []string{"wrong-command"})
	assert.True(t, shouldPatch(d, overrides, []string{"router"}))
}

// TestDebounce_CoalescesBurstIntoOnePatch exercises S6: five events for the
// same deployment within a short burst yield exactly one edit, issued only
// after the debounce window elapses.
func TestDebounce_CoalescesBurstIntoOnePatch(t *testing.T) {
	scheme := runtime.NewScheme()
	require.NoError(t, appsv1.AddToScheme(scheme))
	require.NoError(t, corev1.AddToScheme(scheme))

	initial := testDeployment(corev1.ResourceRequirements{}, nil)
	fakeClient := fake.NewClientBuilder().WithScheme(scheme).WithObjects(initial).Build()

	getter := &fakeGetter{deployment: initial}

	p := &Patcher{
		client:    fakeClient,
		deploys:   getter,
		resources: overridesFixture(),
		command:   []string{"haproxy"},
		pending:   map[types.NamespacedName]struct{}{},
	}

	start := time.Now()
	for i := 0; i < 5; i++ {
		p.OnDeploymentEvent(initial)
		time.Sleep(10 * time.Millisecond)
	}

	key := types.NamespacedName{Namespace: initial.Namespace, Name: initial.Name}
	deadline := time.After(3 * time.Second)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			var got appsv1.Deployment
			if err := fakeClient.Get(context.Background(), client.ObjectKey(key), &got); err == nil {
				if len(got.Spec.Template.Spec.Containers[0].Command) > 0 {
					assert.GreaterOrEqual(t, time.Since(start), debounceDelay)
					assert.Equal(t, []string{"haproxy"}, got.Spec.Template.Spec.Containers[0].Command)
					return
				}
			}
		case <-deadline:
			t.Fatal("timed out waiting for debounced patch")
		}
	}
}
