package components

import "fmt"

// All builds the complete adapter set and dependency DAG for a run with
// nodeCount nodes (spec.md §4.8):
//
//	etcd -> apiserver
//	apiserver -> controller-manager, scheduler
//	apiserver -> (for each node i) crio-i -> kubelet-i -> proxy-i
//	all kubelets ready -> coredns
func All(nodeCount int, hostname string) []Adapter {
	adapters := []Adapter{Etcd, APIServer, ControllerManager, Scheduler}

	kubeletNames := make([]string, 0, nodeCount)
	for i := 0; i < nodeCount; i++ {
		adapters = append(adapters, CRIO(i), Kubelet(i, hostname), Proxy(i))
		kubeletNames = append(kubeletNames, fmt.Sprintf("kubelet-%d", i))
	}

	adapters = append(adapters, CoreDNS(kubeletNames))
	return adapters
}
