package components

import (
	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

var Scheduler = Adapter{
	Name:         "scheduler",
	Dependencies: []string{"apiserver"},
	ComponentDir: func(env Env) string { return "scheduler" },
	LogPath:      func(env Env) string { return env.Paths.LogFile("scheduler", "scheduler") },
	BuildArgv: func(env Env) ([]string, error) {
		return []string{
			"kube-scheduler",
			"--bind-address=127.0.0.1",
			"--secure-port=10259",
			"--leader-elect=false",
			"--kubeconfig", env.Kubeconfigs[pki.Scheduler],
		}, nil
	},
	Readiness: func(env Env) process.Predicate {
		return process.HTTPSHealthz("https://127.0.0.1:10259/healthz", caCert(env), pkiCert(env, pki.Admin), pkiKey(env, pki.Admin))
	},
	ReadyTimeout: defaultReadyTimeout,
}
