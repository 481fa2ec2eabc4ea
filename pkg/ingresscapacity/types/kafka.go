// Package types holds the in-memory shapes this controller reads from the
// wider fleet-shard operand graph. It intentionally does not define a
// generated client for the Kafka custom resource: the controller only ever
// consumes a read-only workload snapshot handed to it by InformerManager
// (see pkg/ingresscapacity/external), so a plain value tree is enough.
package types

// ListenerType distinguishes the listener a Kafka instance exposes
// externally (the one clients connect through) from its internal ones.
type ListenerType string

const (
	// ListenerTypeExternal is the client-facing listener whose quotas and
	// connection limit drive the capacity model.
	ListenerTypeExternal ListenerType = "external"
	ListenerTypePlain     ListenerType = "plain"
	ListenerTypeInternal  ListenerType = "internal"
)

// Listener is one Kafka broker listener configuration.
type Listener struct {
	Name string
	Type ListenerType

	// MaxConnections is the per-broker connection limit for this listener.
	// Nil when unset.
	MaxConnections *int32

	// ProduceQuota and FetchQuota are per-broker byte/s rate limits. Nil
	// when unset.
	ProduceQuota *int64
	FetchQuota   *int64
}

// Kafka is a read-only snapshot of one managed Kafka workload's capacity
// relevant state: how many broker replicas it runs and what its listeners
// demand.
type Kafka struct {
	Name      string
	Namespace string
	Replicas  int32
	Listeners []Listener
}

// ExternalListener returns the listener clients connect through, if any.
func (k Kafka) ExternalListener() (Listener, bool) {
	for _, l := range k.Listeners {
		if l.Type == ListenerTypeExternal {
			return l, true
		}
	}
	return Listener{}, false
}
