package informer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// isWorkerNode, isBrokerPod and isRouterDeployment are the pure label
// predicates behind every AddXEventHandler filter and the WorkerNodes/
// BrokerPods/RouterDeployments list accessors; exercising them directly
// avoids standing up a real controller-runtime manager and cache.

func TestIsWorkerNode(t *testing.T) {
	cases := []struct {
		name   string
		labels map[string]string
		want   bool
	}{
		{"worker", map[string]string{WorkerNodeLabel: ""}, true},
		{"infra-worker-excluded", map[string]string{WorkerNodeLabel: "", InfraNodeLabel: ""}, false},
		{"neither", map[string]string{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isWorkerNode(tc.labels))
		})
	}
}

func TestIsBrokerPod(t *testing.T) {
	cases := []struct {
		name   string
		labels map[string]string
		want   bool
	}{
		{"broker", map[string]string{brokerManagedByLabel: brokerManagedByValue, brokerNameLabel: brokerNameValue}, true},
		{"wrong-managed-by", map[string]string{brokerManagedByLabel: "someone-else", brokerNameLabel: brokerNameValue}, false},
		{"missing-name-label", map[string]string{brokerManagedByLabel: brokerManagedByValue}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isBrokerPod(tc.labels))
		})
	}
}

func TestIsRouterDeployment(t *testing.T) {
	inNamespace := func(ns string, labels map[string]string) *appsv1.Deployment {
		return &appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Namespace: ns, Labels: labels}}
	}

	assert.True(t, isRouterDeployment(inNamespace("openshift-ingress", map[string]string{OwningIngressControllerLabel: "kas"}), "openshift-ingress"))
	assert.False(t, isRouterDeployment(inNamespace("openshift-ingress", map[string]string{}), "openshift-ingress"))
	assert.False(t, isRouterDeployment(inNamespace("some-other-namespace", map[string]string{OwningIngressControllerLabel: "kas"}), "openshift-ingress"))
}
