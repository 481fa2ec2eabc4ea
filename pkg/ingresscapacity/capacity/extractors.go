package capacity

import "github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/types"

// ProduceQuota extracts a kafka's external listener produce quota, the
// "ingress" throughput quantity in this model's terminology.
func ProduceQuota(k types.Kafka) (int64, bool) {
	listener, ok := k.ExternalListener()
	if !ok || listener.ProduceQuota == nil {
		return 0, false
	}
	return *listener.ProduceQuota, true
}

// FetchQuota extracts a kafka's external listener fetch quota, the
// "egress" throughput quantity in this model's terminology.
func FetchQuota(k types.Kafka) (int64, bool) {
	listener, ok := k.ExternalListener()
	if !ok || listener.FetchQuota == nil {
		return 0, false
	}
	return *listener.FetchQuota, true
}
