// Package capacity implements the pure replica-sizing formulas that turn
// observed Kafka workload demand into an ingress controller replica count.
// Every exported function here is deterministic and side-effect-free: no
// Kubernetes client, no clock, no logging.
package capacity

import (
	"math"

	"github.com/pkg/errors"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/types"
)

// ErrConfigUnsatisfiable is returned when the configured maximum ingress
// throughput cannot accommodate even a single replica's fixed overhead
// (replication traffic, in-flight headroom, and the 1 MiB safety margin).
var ErrConfigUnsatisfiable = errors.New("configured max ingress throughput cannot satisfy per-replica overhead")

// oneMiB is the fixed safety margin subtracted from every replica's share
// of the configured throughput ceiling.
const oneMiB = 1 << 20

// ByteSummary aggregates a byte/s quantity (a produce or fetch quota) across
// a set of Kafka instances.
type ByteSummary struct {
	// Sum is the total of the quantity across every broker replica of
	// every Kafka instance that reported one.
	Sum int64
	// Max is the largest single Kafka instance's quantity.
	Max int64
}

// Extractor pulls one Kafka instance's byte/s quantity, reporting whether
// that instance carries a value at all.
type Extractor func(types.Kafka) (int64, bool)

// BuildByteSummary aggregates quantity across kafkas, with each kafka
// contributing replicas copies of its quantity to Sum and one sample of it
// to the running Max. If no kafka reports a value and no default is given,
// BuildByteSummary fails: the summary would otherwise be silently zero,
// masking a misconfigured or un-onboarded workload.
func BuildByteSummary(kafkas []types.Kafka, extract Extractor, defaultValue *int64) (ByteSummary, error) {
	var summary ByteSummary
	sawAny := false

	for _, k := range kafkas {
		quantity, ok := extract(k)
		if !ok {
			continue
		}
		sawAny = true
		summary.Sum += quantity * int64(k.Replicas)
		if quantity > summary.Max {
			summary.Max = quantity
		}
	}

	if !sawAny {
		if defaultValue == nil {
			return ByteSummary{}, errors.New("no kafka instance reported this quantity and no default was supplied")
		}
		summary.Sum = *defaultValue
		summary.Max = *defaultValue
	}

	return summary, nil
}

// ReplicasForZone computes the replica count for one zone-pinned ingress
// controller from the zone's share of ingress/egress throughput and
// connection demand.
//
//  1. An explicit AZReplicaOverride always wins.
//  2. Otherwise the replica count is the larger of a throughput-bound and a
//     connection-bound estimate, floored at 1.
func ReplicasForZone(ingress, egress ByteSummary, connectionDemand int64, zoneFraction float64, cfg config.Config) (int, error) {
	if cfg.AZReplicaOverride != nil {
		return int(*cfg.AZReplicaOverride), nil
	}

	throughput := float64(egress.Max+ingress.Max) / 2
	replicationThroughput := float64(ingress.Max) * 2
	perReplicaBytes := float64(cfg.MaxIngressThroughputBytes) - replicationThroughput - throughput/2 - oneMiB
	if perReplicaBytes < 0 {
		return 0, ErrConfigUnsatisfiable
	}

	demand := float64(egress.Sum+ingress.Sum) * zoneFraction / 2 * (float64(cfg.PeakThroughputPercentage) / 100)
	throughputReplicas := int(math.Ceil(demand / perReplicaBytes))

	connReplicas := int(math.Ceil(float64(connectionDemand) * zoneFraction / float64(cfg.MaxIngressConnections)))

	return maxInt(1, throughputReplicas, connReplicas), nil
}

// ReplicasForDefault computes the replica count for the default multi-zone
// ingress controller from total connection demand.
func ReplicasForDefault(connectionDemand int64, cfg config.Config) int {
	if cfg.DefaultReplicaOverride != nil {
		return int(*cfg.DefaultReplicaOverride)
	}
	return int(math.Ceil(float64(connectionDemand) / float64(cfg.MaxIngressConnections)))
}

// ConnectionDemand sums, across every kafka, its external listener's
// maxConnections times its broker replica count. A kafka without an
// external listener or without maxConnections set contributes 0.
func ConnectionDemand(kafkas []types.Kafka) int64 {
	var total int64
	for _, k := range kafkas {
		listener, ok := k.ExternalListener()
		if !ok || listener.MaxConnections == nil {
			continue
		}
		total += int64(*listener.MaxConnections) * int64(k.Replicas)
	}
	return total
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
