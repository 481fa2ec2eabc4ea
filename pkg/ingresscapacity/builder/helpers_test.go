package builder

import (
	"encoding/json"
	"testing"

	"k8s.io/apimachinery/pkg/runtime"

	operatorv1 "github.com/openshift/api/operator/v1"
)

func runtimeRawExtension(t *testing.T, v map[string]interface{}) runtime.RawExtension {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal overrides fixture: %v", err)
	}
	return runtime.RawExtension{Raw: raw}
}

func decodeOverrides(t *testing.T, ic *operatorv1.IngressController) map[string]interface{} {
	t.Helper()
	overrides := map[string]interface{}{}
	if len(ic.Spec.UnsupportedConfigOverrides.Raw) == 0 {
		return overrides
	}
	if err := json.Unmarshal(ic.Spec.UnsupportedConfigOverrides.Raw, &overrides); err != nil {
		t.Fatalf("failed to unmarshal overrides: %v", err)
	}
	return overrides
}
