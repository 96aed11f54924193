package components

import (
	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

// Etcd is the root of the dependency DAG: nothing starts before it.
var Etcd = Adapter{
	Name:         "etcd",
	Dependencies: nil,
	ComponentDir: func(env Env) string { return "etcd" },
	LogPath:      func(env Env) string { return env.Paths.LogFile("etcd", "etcd") },
	BuildArgv: func(env Env) ([]string, error) {
		dataDir := env.Paths.ComponentDir("etcd") + "/data"
		return []string{
			"etcd",
			"--name", "kubernix",
			"--data-dir", dataDir,
			"--listen-client-urls", "https://127.0.0.1:2379",
			"--advertise-client-urls", "https://127.0.0.1:2379",
			"--listen-peer-urls", "https://127.0.0.1:2380",
			"--initial-advertise-peer-urls", "https://127.0.0.1:2380",
			"--initial-cluster", "kubernix=https://127.0.0.1:2380",
			"--cert-file", pkiCert(env, pki.APIServer),
			"--key-file", pkiKey(env, pki.APIServer),
			"--peer-cert-file", pkiCert(env, pki.APIServer),
			"--peer-key-file", pkiKey(env, pki.APIServer),
			"--trusted-ca-file", caCert(env),
			"--peer-trusted-ca-file", caCert(env),
			"--client-cert-auth",
			"--peer-client-cert-auth",
		}, nil
	},
	Readiness: func(env Env) process.Predicate {
		return process.All(
			process.TCPOpen("127.0.0.1:2379"),
			process.LogContains(env.Paths.LogFile("etcd", "etcd"), "ready to serve client requests"),
		)
	},
	ReadyTimeout: defaultReadyTimeout,
}
