package builder

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "gomodules.xyz/jsonpatch/v2"
	"k8s.io/apimachinery/pkg/api/errors"
	"sigs.k8s.io/controller-runtime/pkg/client"

	operatorv1 "github.com/openshift/api/operator/v1"
)

// Apply creates the desired ingress controller if none exists. Otherwise it
// diffs desired against observed as JSON and writes only if the diff
// contains an operation other than "add" — partial deserialization of the
// observed object can make fields the builder never touched look dropped
// from the candidate, which an "add"-only diff correctly ignores.
//
// Returns whether a write happened.
func Apply(ctx context.Context, c client.Client, observed *operatorv1.IngressController, desired *operatorv1.IngressController) (bool, error) {
	if observed == nil {
		if err := c.Create(ctx, desired); err != nil {
			if errors.IsAlreadyExists(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to create ingresscontroller %s/%s: %w", desired.Namespace, desired.Name, err)
		}
		log.Info("created ingresscontroller", "namespace", desired.Namespace, "name", desired.Name)
		return true, nil
	}

	changed, err := meaningfullyDifferent(observed, desired)
	if err != nil {
		return false, fmt.Errorf("failed to diff ingresscontroller %s/%s: %w", desired.Namespace, desired.Name, err)
	}
	if !changed {
		return false, nil
	}

	updated := observed.DeepCopy()
	updated.Spec = desired.Spec
	updated.Labels = desired.Labels
	updated.Annotations = desired.Annotations

	if err := c.Update(ctx, updated); err != nil {
		return false, fmt.Errorf("failed to update ingresscontroller %s/%s: %w", desired.Namespace, desired.Name, err)
	}
	log.Info("updated ingresscontroller", "namespace", desired.Namespace, "name", desired.Name)
	return true, nil
}

// meaningfullyDifferent reports whether desired's JSON patch against
// observed contains any operation other than "add".
func meaningfullyDifferent(observed, desired *operatorv1.IngressController) (bool, error) {
	observedJSON, err := json.Marshal(observed)
	if err != nil {
		return false, err
	}
	desiredJSON, err := json.Marshal(desired)
	if err != nil {
		return false, err
	}

	patch, err := jsonpatch.CreatePatch(observedJSON, desiredJSON)
	if err != nil {
		return false, err
	}

	for _, op := range patch {
		if op.Operation != "add" {
			return true, nil
		}
	}
	return false, nil
}
