package components

import (
	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

var ControllerManager = Adapter{
	Name:         "controller-manager",
	Dependencies: []string{"apiserver"},
	ComponentDir: func(env Env) string { return "controllermanager" },
	LogPath:      func(env Env) string { return env.Paths.LogFile("controllermanager", "controller-manager") },
	BuildArgv: func(env Env) ([]string, error) {
		return []string{
			"kube-controller-manager",
			"--bind-address=127.0.0.1",
			"--secure-port=10257",
			"--cluster-cidr", env.Plan.ClusterCIDR.String(),
			"--service-cluster-ip-range", env.Plan.ServiceCIDR.String(),
			"--allocate-node-cidrs=true",
			"--cluster-signing-cert-file", caCert(env),
			"--cluster-signing-key-file", env.Bundle.CAKey(),
			"--root-ca-file", caCert(env),
			"--service-account-private-key-file", pkiKey(env, pki.ServiceAccount),
			"--use-service-account-credentials=true",
			"--leader-elect=false",
			"--kubeconfig", env.Kubeconfigs[pki.ControllerManager],
		}, nil
	},
	Readiness: func(env Env) process.Predicate {
		return process.HTTPSHealthz("https://127.0.0.1:10257/healthz", caCert(env), pkiCert(env, pki.Admin), pkiKey(env, pki.Admin))
	},
	ReadyTimeout: defaultReadyTimeout,
}
