package components

import (
	"fmt"

	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

// Kubelet builds the per-node kubelet adapter. Node name is "node-<i>"
// except node 0, which registers under the host's own hostname.
func Kubelet(i int, hostname string) Adapter {
	dirName := fmt.Sprintf("kubelet-%d", i)
	nodeName := pki.NodeName(i, hostname)

	return Adapter{
		Name:         dirName,
		Dependencies: []string{fmt.Sprintf("crio-%d", i)},
		ComponentDir: func(env Env) string { return dirName },
		LogPath:      func(env Env) string { return env.Paths.LogFile(dirName, "kubelet") },
		PreStart: ensureNode(i),
		BuildArgv: func(env Env) ([]string, error) {
			identity := pki.KubeletIdentity(i)
			argv := []string{
				"kubelet",
				"--config", env.Paths.KubeletConfig(i),
				"--root-dir", env.Paths.KubeletDir(i),
				"--container-runtime-endpoint", "unix://" + env.Paths.CrioSocket(i),
				"--kubeconfig", env.Kubeconfigs[identity],
				"--hostname-override", nodeName,
				"--tls-cert-file", pkiCert(env, identity),
				"--tls-private-key-file", pkiKey(env, identity),
				"--register-node=true",
			}
			return wrapForNode(env, i, argv), nil
		},
		Readiness: func(env Env) process.Predicate {
			return process.KubectlNodeReady(env.Kubeconfigs[pki.Admin], nodeName)
		},
		ReadyTimeout: defaultReadyTimeout,
	}
}
