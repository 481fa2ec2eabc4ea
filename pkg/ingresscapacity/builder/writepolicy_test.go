package builder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	operatorv1 "github.com/openshift/api/operator/v1"
)

func newFakeClient(t *testing.T, initObjs ...client.Object) client.Client {
	t.Helper()
	scheme := runtime.NewScheme()
	require.NoError(t, operatorv1.AddToScheme(scheme))
	return fake.NewClientBuilder().WithScheme(scheme).WithObjects(initObjs...).Build()
}

func TestApply_CreatesWhenAbsent(t *testing.T) {
	c := newFakeClient(t)
	desired, _ := Build(Options{Namespace: "openshift-ingress-operator", Name: "kas", Replicas: 1}, 1)

	changed, err := Apply(context.Background(), c, nil, desired)
	require.NoError(t, err)
	assert.True(t, changed)

	got := &operatorv1.IngressController{}
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "openshift-ingress-operator", Name: "kas"}, got))
	assert.Equal(t, int32(1), *got.Spec.Replicas)
}

// Idempotence: a second Apply with the same inputs must not write again.
func TestApply_NoOpOnIdenticalState(t *testing.T) {
	existing := &operatorv1.IngressController{
		ObjectMeta: metav1.ObjectMeta{Namespace: "openshift-ingress-operator", Name: "kas"},
		Spec:       operatorv1.IngressControllerSpec{Replicas: int32p(1)},
	}
	// The fake client stamps a resourceVersion onto existing; build desired
	// afterwards so both carry it, as an object read from the cache would.
	c := newFakeClient(t, existing)
	desired, _ := Build(Options{Existing: existing, Namespace: "openshift-ingress-operator", Name: "kas", Replicas: 1}, 1)

	changed, err := Apply(context.Background(), c, existing, desired)
	require.NoError(t, err)
	assert.False(t, changed)
}

// A real observed object always carries a non-zero creationTimestamp. Build
// must preserve it onto desired rather than resetting it to the zero Time
// (which marshals as a literal JSON null and would make every pass look
// like a "replace" diff against the real value forever).
func TestApply_NoOpWhenExistingHasNonZeroCreationTimestamp(t *testing.T) {
	existing := &operatorv1.IngressController{
		ObjectMeta: metav1.ObjectMeta{
			Namespace:         "openshift-ingress-operator",
			Name:              "kas",
			CreationTimestamp: metav1.NewTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
		},
		Spec: operatorv1.IngressControllerSpec{Replicas: int32p(1)},
	}
	c := newFakeClient(t, existing)
	desired, _ := Build(Options{Existing: existing, Namespace: "openshift-ingress-operator", Name: "kas", Replicas: 1}, 1)

	changed, err := Apply(context.Background(), c, existing, desired)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestApply_WritesWhenCoreOwnedFieldChanges(t *testing.T) {
	existing := &operatorv1.IngressController{
		ObjectMeta: metav1.ObjectMeta{Namespace: "openshift-ingress-operator", Name: "kas"},
		Spec:       operatorv1.IngressControllerSpec{Replicas: int32p(1)},
	}
	desired, _ := Build(Options{Existing: existing, Namespace: "openshift-ingress-operator", Name: "kas", Replicas: 3}, 1)

	c := newFakeClient(t, existing)
	changed, err := Apply(context.Background(), c, existing, desired)
	require.NoError(t, err)
	assert.True(t, changed)

	got := &operatorv1.IngressController{}
	require.NoError(t, c.Get(context.Background(), types.NamespacedName{Namespace: "openshift-ingress-operator", Name: "kas"}, got))
	assert.Equal(t, int32(3), *got.Spec.Replicas)
}
