package components

import (
	"fmt"

	"github.com/kubernix/kubernix/internal/process"
)

// CRIO builds the per-node CRI-O adapter. Node i's dependency is apiserver
// directly: container runtime start doesn't need a Ready kubelet anywhere
// else, only a live control plane to eventually register against.
func CRIO(i int) Adapter {
	dirName := fmt.Sprintf("crio-%d", i)
	return Adapter{
		Name:         dirName,
		Dependencies: []string{"apiserver"},
		ComponentDir: func(env Env) string { return dirName },
		LogPath:      func(env Env) string { return env.Paths.LogFile(dirName, "crio") },
		PreStart: ensureNode(i),
		BuildArgv: func(env Env) ([]string, error) {
			argv := []string{
				"crio",
				"--config", env.Paths.CrioConf(i),
				"--listen", env.Paths.CrioSocket(i),
				"--signature-policy", env.Paths.CrioPolicy(i),
				"--cni-config-dir", env.Paths.CrioDir(i) + "/cni",
			}
			return wrapForNode(env, i, argv), nil
		},
		Readiness: func(env Env) process.Predicate {
			return process.CRISocketResponds(env.Paths.CrioSocket(i))
		},
		ReadyTimeout: defaultReadyTimeout,
	}
}
