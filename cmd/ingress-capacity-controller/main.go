// Command ingress-capacity-controller runs the ingress capacity
// controller standalone: it binds process configuration from the
// environment, builds a controller-runtime manager, and drives the
// Reconciler, Router Deployment Patcher, and Periodic Trigger until
// signalled to stop.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	corev1 "k8s.io/api/core/v1"
	ctrlconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	"sigs.k8s.io/controller-runtime/pkg/manager/signals"

	routev1 "github.com/openshift/api/route/v1"

	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/builder"
	ccconfig "github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/config"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/external"
	"github.com/openshift/ingress-capacity-controller/pkg/ingresscapacity/types"
	logf "github.com/openshift/ingress-capacity-controller/pkg/log"
	"github.com/openshift/ingress-capacity-controller/pkg/operator"
)

var log = logf.Logger.WithName("main")

var (
	namespace        string
	routerNamespace  string
	endpointStrategy string
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingress-capacity-controller",
		Short: "Sizes and shapes the ingress routing tier for managed Kafka workloads",
		RunE:  run,
	}
	cmd.Flags().StringVar(&namespace, "namespace", "openshift-ingress-operator", "namespace the managed ingress controllers live in")
	cmd.Flags().StringVar(&routerNamespace, "router-namespace", "openshift-ingress", "namespace router deployments live in")
	cmd.Flags().StringVar(&endpointStrategy, "endpoint-strategy", "loadbalancer", "endpoint publishing strategy: loadbalancer or loadbalancer-nlb")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	capacityCfg, err := ccconfig.FromEnviron()
	if err != nil {
		return fmt.Errorf("failed to bind configuration: %w", err)
	}

	strategy, err := parseEndpointStrategy(endpointStrategy)
	if err != nil {
		return err
	}

	kubeConfig, err := ctrlconfig.GetConfig()
	if err != nil {
		return fmt.Errorf("failed to load kubeconfig: %w", err)
	}

	cfg := operator.Config{
		Namespace:        namespace,
		RouterNamespace:  routerNamespace,
		Capacity:         capacityCfg,
		EndpointStrategy: strategy,
	}

	o, err := operator.New(kubeConfig, cfg, newStandaloneInformerManager())
	if err != nil {
		return fmt.Errorf("failed to construct operator: %w", err)
	}

	ctx := signals.SetupSignalHandler()
	log.Info("starting ingress capacity controller", "namespace", namespace, "routerNamespace", routerNamespace)
	return o.Start(ctx)
}

func parseEndpointStrategy(s string) (builder.EndpointStrategy, error) {
	switch s {
	case "loadbalancer":
		return builder.EndpointStrategyLoadBalancerExternal, nil
	case "loadbalancer-nlb":
		return builder.EndpointStrategyLoadBalancerExternalNLB, nil
	default:
		return 0, fmt.Errorf("unknown endpoint strategy %q", s)
	}
}

// standaloneInformerManager is a placeholder external.InformerManager for
// running this controller outside the surrounding fleet-shard operand
// graph, which normally supplies Kafka workload snapshots. It reports no
// Kafka instances and declines route/service lookups; a real deployment
// links this binary against that operator's own implementation instead.
type standaloneInformerManager struct{}

func newStandaloneInformerManager() external.InformerManager {
	return standaloneInformerManager{}
}

func (standaloneInformerManager) GetKafkas() []types.Kafka { return nil }

func (standaloneInformerManager) GetRoutesInNamespace(ns string) []*routev1.Route { return nil }

func (standaloneInformerManager) GetLocalService(ns, name string) (*corev1.Service, error) {
	return nil, fmt.Errorf("no local service cache in standalone mode")
}

func (standaloneInformerManager) ResyncManagedKafka() {}
