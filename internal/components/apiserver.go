package components

import (
	"fmt"

	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

var APIServer = Adapter{
	Name:         "apiserver",
	Dependencies: []string{"etcd"},
	ComponentDir: func(env Env) string { return "apiserver" },
	LogPath:      func(env Env) string { return env.Paths.LogFile("apiserver", "apiserver") },
	BuildArgv: func(env Env) ([]string, error) {
		return []string{
			"kube-apiserver",
			"--advertise-address", env.Plan.APIAdvertiseIP.String(),
			"--allow-privileged=true",
			"--authorization-mode=Node,RBAC",
			"--bind-address=0.0.0.0",
			"--secure-port=6443",
			"--client-ca-file", caCert(env),
			"--enable-admission-plugins=NodeRestriction",
			"--etcd-cafile", caCert(env),
			"--etcd-certfile", pkiCert(env, pki.APIServer),
			"--etcd-keyfile", pkiKey(env, pki.APIServer),
			"--etcd-servers=https://127.0.0.1:2379",
			"--encryption-provider-config", env.Paths.EncryptionConfig(),
			"--kubelet-certificate-authority", caCert(env),
			"--kubelet-client-certificate", pkiCert(env, pki.APIServer),
			"--kubelet-client-key", pkiKey(env, pki.APIServer),
			"--service-account-key-file", pkiCert(env, pki.ServiceAccount),
			"--service-account-signing-key-file", pkiKey(env, pki.ServiceAccount),
			"--service-account-issuer=https://kubernetes.default.svc.cluster.local",
			"--service-cluster-ip-range", env.Plan.ServiceCIDR.String(),
			"--service-node-port-range=30000-32767",
			"--tls-cert-file", pkiCert(env, pki.APIServer),
			"--tls-private-key-file", pkiKey(env, pki.APIServer),
		}, nil
	},
	Readiness: func(env Env) process.Predicate {
		url := fmt.Sprintf("https://%s:6443/healthz", env.Plan.APIAdvertiseIP.String())
		return process.HTTPSHealthz(url, caCert(env), pkiCert(env, pki.Admin), pkiKey(env, pki.Admin))
	},
	ReadyTimeout: defaultReadyTimeout,
}
