// Package informer provides the Informer Facade: a uniform, ready-gated
// read cache and event source over the resource set this controller
// watches directly (worker nodes, broker pods, the ingress controllers it
// manages, and their router deployments). See Manager in manager.go.
package informer

import (
	"k8s.io/client-go/tools/cache"
)

// Handler mirrors cache.ResourceEventHandlerFuncs; any nil field is
// treated as a no-op.
type Handler struct {
	OnAdd    func(obj interface{})
	OnUpdate func(oldObj, newObj interface{})
	OnDelete func(obj interface{})
}

// Filter narrows an informer to objects passing keep, mirroring
// cache.FilteringResourceEventHandler's use in client-go-based controllers.
func Filter(keep func(obj interface{}) bool, h Handler) cache.ResourceEventHandlerFuncs {
	return cache.ResourceEventHandlerFuncs{
		AddFunc: func(obj interface{}) {
			if keep(obj) && h.OnAdd != nil {
				h.OnAdd(obj)
			}
		},
		UpdateFunc: func(oldObj, newObj interface{}) {
			if keep(newObj) && h.OnUpdate != nil {
				h.OnUpdate(oldObj, newObj)
			}
		},
		DeleteFunc: func(obj interface{}) {
			if keep(obj) && h.OnDelete != nil {
				h.OnDelete(obj)
			}
		},
	}
}
