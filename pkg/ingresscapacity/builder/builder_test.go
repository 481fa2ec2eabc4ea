package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	operatorv1 "github.com/openshift/api/operator/v1"
)

func int32p(v int32) *int32 { return &v }

func TestBuild_NoExisting_UsesComputedReplicas(t *testing.T) {
	desired, replicas := Build(Options{
		Namespace:                "openshift-ingress-operator",
		Name:                     "kas-a",
		Domain:                   "kas-a.example.com",
		Replicas:                 3,
		RouteSelectorMatchLabels: map[string]string{"managedkafka.bf2.org/kas-a": "true"},
		TopologyValue:            "a",
	}, 1)

	assert.Equal(t, 3, replicas)
	require.NotNil(t, desired.Spec.Replicas)
	assert.Equal(t, int32(3), *desired.Spec.Replicas)
	assert.Equal(t, "kas-a.example.com", desired.Spec.Domain)
	assert.Equal(t, "true", desired.Spec.RouteSelector.MatchLabels["managedkafka.bf2.org/kas-a"])
	require.NotNil(t, desired.Spec.NodePlacement)
	assert.Equal(t, "a", desired.Spec.NodePlacement.NodeSelector.MatchLabels[TopologyKey])
}

// S3 from spec.md: hysteresis holds replicas when the drop is <= 1.
func TestBuild_Hysteresis_Holds(t *testing.T) {
	existing := &operatorv1.IngressController{Spec: operatorv1.IngressControllerSpec{Replicas: int32p(5)}}
	_, replicas := Build(Options{Existing: existing, Replicas: 4}, 1)
	assert.Equal(t, 5, replicas)
}

// S4 from spec.md: hysteresis releases when the drop is > 1.
func TestBuild_Hysteresis_Releases(t *testing.T) {
	existing := &operatorv1.IngressController{Spec: operatorv1.IngressControllerSpec{Replicas: int32p(5)}}
	_, replicas := Build(Options{Existing: existing, Replicas: 3}, 1)
	assert.Equal(t, 3, replicas)
}

// S2 from spec.md: HA floor raises a lone replica to 2 when > 3 worker nodes.
func TestBuild_HAFloor(t *testing.T) {
	_, replicas := Build(Options{Replicas: 1}, 4)
	assert.Equal(t, 2, replicas)
}

func TestBuild_HAFloor_NotAppliedAtOrBelowThreeNodes(t *testing.T) {
	_, replicas := Build(Options{Replicas: 1}, 3)
	assert.Equal(t, 1, replicas)
}

func TestBuild_PreservesForeignFieldsAndUnsupportedOverrides(t *testing.T) {
	existing := &operatorv1.IngressController{
		ObjectMeta: metav1.ObjectMeta{
			Name:        "kas",
			Labels:      map[string]string{"foreign.example.com/owner": "someone-else"},
			Annotations: map[string]string{"foreign.example.com/note": "do-not-touch"},
		},
		Spec: operatorv1.IngressControllerSpec{
			Replicas: int32p(2),
			UnsupportedConfigOverrides: runtimeRawExtension(t, map[string]interface{}{
				"someForeignKey": "someForeignValue",
			}),
		},
	}

	desired, _ := Build(Options{
		Existing:              existing,
		Replicas:              2,
		ReloadIntervalSeconds: 30,
		Labels:                map[string]string{"managedkafka.bf2.org/managed-by": "ingress-capacity-controller"},
	}, 1)

	assert.Equal(t, "someone-else", desired.Labels["foreign.example.com/owner"])
	assert.Equal(t, "ingress-capacity-controller", desired.Labels["managedkafka.bf2.org/managed-by"])
	assert.Equal(t, "do-not-touch", desired.Annotations["foreign.example.com/note"])

	overrides := decodeOverrides(t, desired)
	assert.Equal(t, "someForeignValue", overrides["someForeignKey"])
	assert.EqualValues(t, 30, overrides[reloadIntervalKey])
}

func TestBuild_RemovesReloadIntervalWhenDisabled(t *testing.T) {
	existing := &operatorv1.IngressController{
		Spec: operatorv1.IngressControllerSpec{
			Replicas: int32p(2),
			UnsupportedConfigOverrides: runtimeRawExtension(t, map[string]interface{}{
				reloadIntervalKey: 45,
				"keepMe":          true,
			}),
		},
	}

	desired, _ := Build(Options{Existing: existing, Replicas: 2, ReloadIntervalSeconds: 0}, 1)

	overrides := decodeOverrides(t, desired)
	_, present := overrides[reloadIntervalKey]
	assert.False(t, present)
	assert.Equal(t, true, overrides["keepMe"])
}

// Build must only touch the ObjectMeta fields it owns: CreationTimestamp,
// UID and other foreign metadata must survive from Options.Existing rather
// than reset to their zero value, since a zero CreationTimestamp serializes
// as a literal JSON null and would make the write policy see a spurious
// "replace" diff against the real, non-zero observed value forever.
func TestBuild_PreservesCreationTimestampAndUID(t *testing.T) {
	created := metav1.NewTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	existing := &operatorv1.IngressController{
		ObjectMeta: metav1.ObjectMeta{
			Name:              "kas",
			UID:               "abc-123",
			CreationTimestamp: created,
		},
		Spec: operatorv1.IngressControllerSpec{Replicas: int32p(2)},
	}

	desired, _ := Build(Options{Existing: existing, Replicas: 2}, 1)

	assert.Equal(t, created, desired.CreationTimestamp)
	assert.Equal(t, existing.UID, desired.UID)
}

func TestBuild_HardStopAfterAnnotation(t *testing.T) {
	desired, _ := Build(Options{Replicas: 1, HardStopAfter: "168h"}, 1)
	assert.Equal(t, "168h", desired.Annotations[HardStopAfterAnnotation])

	desired, _ = Build(Options{Existing: desired, Replicas: 1, HardStopAfter: ""}, 1)
	_, present := desired.Annotations[HardStopAfterAnnotation]
	assert.False(t, present)
}
