package components

import (
	"context"

	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

// CoreDNS has no supervised process of its own: it is applied as a
// manifest via kubectl and its readiness is the Deployment becoming
// Available. BuildArgv is nil; the supervisor treats a nil BuildArgv as an
// apply-only component driven entirely by PostStart+Readiness.
func CoreDNS(allKubeletNames []string) Adapter {
	deps := append([]string{}, allKubeletNames...)
	return Adapter{
		Name:         "coredns",
		Dependencies: deps,
		ComponentDir: func(env Env) string { return "coredns" },
		LogPath:      func(env Env) string { return env.Paths.LogFile("coredns", "apply") },
		BuildArgv:    nil,
		PostStart: func(ctx context.Context, env Env) error {
			manifestPath := env.Paths.CoreDNSDir() + "/coredns.yml"
			return process.KubectlApply(ctx, env.Kubeconfigs[pki.Admin], manifestPath)
		},
		Readiness: func(env Env) process.Predicate {
			return process.DeploymentAvailable(env.Kubeconfigs[pki.Admin], "kube-system", "coredns")
		},
		ReadyTimeout: defaultReadyTimeout,
	}
}
