package components

import (
	"fmt"

	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

// Proxy builds the per-node kube-proxy adapter.
func Proxy(i int) Adapter {
	dirName := fmt.Sprintf("proxy-%d", i)
	return Adapter{
		Name:         dirName,
		Dependencies: []string{fmt.Sprintf("kubelet-%d", i)},
		ComponentDir: func(env Env) string { return dirName },
		LogPath:      func(env Env) string { return env.Paths.LogFile(dirName, "proxy") },
		PreStart: ensureNode(i),
		BuildArgv: func(env Env) ([]string, error) {
			argv := []string{
				"kube-proxy",
				"--config", env.Paths.ProxyConfig(i),
				"--kubeconfig", env.Kubeconfigs[pki.Proxy],
				"--cluster-cidr", env.Plan.ClusterCIDR.String(),
			}
			return wrapForNode(env, i, argv), nil
		},
		Readiness: func(env Env) process.Predicate {
			logPath := env.Paths.LogFile(dirName, "proxy")
			return process.LogContains(logPath, "Starting iptables rules sync thread")
		},
		ReadyTimeout: defaultReadyTimeout,
	}
}
