// Package components holds one adapter per supervised binary: etcd,
// kube-apiserver, kube-controller-manager, kube-scheduler, CRI-O, kubelet,
// kube-proxy, and CoreDNS. Each composes its argv from Config+PKI+NetworkPlan
// +Paths and declares its start dependencies; the supervisor owns the
// process.Handle spawned from it (spec.md §3, §4.6). Grounded in the teacher CLI's systemd-unit generators
// in k8s/clustersetup/helpers.go, translated from unit files into argv
// slices since KuberNix supervises processes directly instead of via systemd.
package components

import (
	"context"
	"time"

	"github.com/kubernix/kubernix/internal/config"
	"github.com/kubernix/kubernix/internal/netplan"
	"github.com/kubernix/kubernix/internal/node"
	"github.com/kubernix/kubernix/internal/paths"
	"github.com/kubernix/kubernix/internal/pki"
	"github.com/kubernix/kubernix/internal/process"
)

// Env bundles everything an adapter needs to build its argv and readiness
// check: the resolved config, PKI bundle, network plan, path layout, and
// the kubeconfig paths WriteAll produced. NodeManager is nil when
// Config.Nodes == 1, since node 0 always runs on the host.
type Env struct {
	Config      config.Config
	Plan        netplan.Plan
	Bundle      pki.Bundle
	Paths       paths.Paths
	Kubeconfigs map[string]string
	NodeManager *node.Manager
}

// Adapter is spec.md §3's component adapter: name, dependency edges, an
// argv builder, and a readiness predicate factory.
type Adapter struct {
	Name         string
	Dependencies []string
	BuildArgv    func(Env) ([]string, error)
	LogPath      func(Env) string
	ComponentDir func(Env) string
	Readiness    func(Env) process.Predicate
	ReadyTimeout time.Duration
	// PreStart runs before BuildArgv/spawn, e.g. to ensure a node container
	// exists for a containerized worker node.
	PreStart  func(ctx context.Context, env Env) error
	PostStart func(ctx context.Context, env Env) error
}

const defaultReadyTimeout = 60 * time.Second

// pkiCert/pkiKey/caCert are small readability helpers used by every adapter
// to reference a PKI identity's files in argv.
func pkiCert(env Env, name string) string { return env.Bundle.Cert(name) }
func pkiKey(env Env, name string) string  { return env.Bundle.Key(name) }
func caCert(env Env) string                { return env.Bundle.CACert() }

// wrapForNode routes argv through the node's container when i > 0 and a
// NodeManager is configured; node 0 and single-node runs pass argv through
// unchanged since they execute directly on the host.
func wrapForNode(env Env, i int, argv []string) []string {
	if env.NodeManager == nil {
		return argv
	}
	return env.NodeManager.WrapArgv(i, argv)
}

// ensureNode is the PreStart hook for per-node adapters: it creates node
// i's container on first use. A no-op for node 0 or single-node runs.
func ensureNode(i int) func(ctx context.Context, env Env) error {
	return func(ctx context.Context, env Env) error {
		if env.NodeManager == nil {
			return nil
		}
		return env.NodeManager.Ensure(ctx, i)
	}
}
