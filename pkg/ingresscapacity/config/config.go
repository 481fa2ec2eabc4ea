// Package config binds the ingress capacity controller's process
// configuration, following the same "plain struct populated once at
// startup" approach the operator package uses for its own Config.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/api/resource"
)

const (
	envLimitCPU                  = "INGRESSCONTROLLER_LIMIT_CPU"
	envLimitMemory                = "INGRESSCONTROLLER_LIMIT_MEMORY"
	envRequestCPU                 = "INGRESSCONTROLLER_REQUEST_CPU"
	envRequestMemory              = "INGRESSCONTROLLER_REQUEST_MEMORY"
	envDefaultReplicaCount        = "INGRESSCONTROLLER_DEFAULT_REPLICA_COUNT"
	envAZReplicaCount             = "INGRESSCONTROLLER_AZ_REPLICA_COUNT"
	envMaxIngressThroughput       = "INGRESSCONTROLLER_MAX_INGRESS_THROUGHPUT"
	envMaxIngressConnections      = "INGRESSCONTROLLER_MAX_INGRESS_CONNECTIONS"
	envHardStopAfter              = "INGRESSCONTROLLER_HARD_STOP_AFTER"
	envIngressContainerCommand    = "INGRESSCONTROLLER_INGRESS_CONTAINER_COMMAND"
	envReloadIntervalSeconds      = "INGRESSCONTROLLER_RELOAD_INTERVAL_SECONDS"
	envPeakThroughputPercentage   = "INGRESSCONTROLLER_PEAK_THROUGHPUT_PERCENTAGE"

	// DefaultPeakThroughputPercentage is used when the percentage is unset,
	// since an explicit 0 would zero out every throughput-bound replica
	// computation.
	DefaultPeakThroughputPercentage = 100
)

// ResourceOverrides holds the four optional resource knobs for the Router
// Deployment Patcher. The patcher is active only when at least one is set.
type ResourceOverrides struct {
	LimitCPU, LimitMemory, RequestCPU, RequestMemory *resource.Quantity
}

// Active reports whether any of the four resource knobs is present.
func (r ResourceOverrides) Active() bool {
	return r.LimitCPU != nil || r.LimitMemory != nil || r.RequestCPU != nil || r.RequestMemory != nil
}

// Config is the full set of process configuration for the ingress capacity
// controller and the router deployment patcher.
type Config struct {
	Resources ResourceOverrides

	DefaultReplicaOverride *int32
	AZReplicaOverride      *int32

	MaxIngressThroughputBytes int64
	MaxIngressConnections     int64
	PeakThroughputPercentage  int

	HardStopAfter           string
	IngressContainerCommand []string
	ReloadIntervalSeconds   int
}

// FromEnviron binds a Config from process environment variables. The
// throughput and connection limit are required; everything else is
// optional and left at its zero value when absent, except the peak
// throughput percentage, which defaults to DefaultPeakThroughputPercentage.
func FromEnviron() (Config, error) {
	var cfg Config
	var err error

	if cfg.Resources.LimitCPU, err = optionalQuantity(envLimitCPU); err != nil {
		return Config{}, err
	}
	if cfg.Resources.LimitMemory, err = optionalQuantity(envLimitMemory); err != nil {
		return Config{}, err
	}
	if cfg.Resources.RequestCPU, err = optionalQuantity(envRequestCPU); err != nil {
		return Config{}, err
	}
	if cfg.Resources.RequestMemory, err = optionalQuantity(envRequestMemory); err != nil {
		return Config{}, err
	}

	if cfg.DefaultReplicaOverride, err = optionalInt32(envDefaultReplicaCount); err != nil {
		return Config{}, err
	}
	if cfg.AZReplicaOverride, err = optionalInt32(envAZReplicaCount); err != nil {
		return Config{}, err
	}

	throughput, ok := os.LookupEnv(envMaxIngressThroughput)
	if !ok {
		return Config{}, errors.Errorf("%s is required", envMaxIngressThroughput)
	}
	q, err := resource.ParseQuantity(throughput)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse %s", envMaxIngressThroughput)
	}
	cfg.MaxIngressThroughputBytes = q.Value()

	conns, ok := os.LookupEnv(envMaxIngressConnections)
	if !ok {
		return Config{}, errors.Errorf("%s is required", envMaxIngressConnections)
	}
	cfg.MaxIngressConnections, err = strconv.ParseInt(conns, 10, 64)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse %s", envMaxIngressConnections)
	}

	cfg.PeakThroughputPercentage = DefaultPeakThroughputPercentage
	if v, ok := os.LookupEnv(envPeakThroughputPercentage); ok {
		cfg.PeakThroughputPercentage, err = strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse %s", envPeakThroughputPercentage)
		}
	}

	cfg.HardStopAfter = os.Getenv(envHardStopAfter)

	if v := os.Getenv(envIngressContainerCommand); v != "" {
		cfg.IngressContainerCommand = strings.Split(v, ",")
	}

	if v, ok := os.LookupEnv(envReloadIntervalSeconds); ok {
		cfg.ReloadIntervalSeconds, err = strconv.Atoi(v)
		if err != nil {
			return Config{}, errors.Wrapf(err, "failed to parse %s", envReloadIntervalSeconds)
		}
	}

	return cfg, nil
}

func optionalQuantity(env string) (*resource.Quantity, error) {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return nil, nil
	}
	q, err := resource.ParseQuantity(v)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", env)
	}
	return &q, nil
}

func optionalInt32(env string) (*int32, error) {
	v, ok := os.LookupEnv(env)
	if !ok || v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", env)
	}
	n32 := int32(n)
	return &n32, nil
}
