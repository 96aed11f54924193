// Package pki materializes KuberNix's certificate graph: a self-signed CA
// plus one CSR-signed keypair per cluster identity, written as PEM under
// <root>/pki (spec.md §3, §4.3). Generation is grounded in the teacher
// CLI's certmanager.go, generalized from a single hardcoded identity list
// to one driven by the network plan and node count.
package pki

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	cfsslconfig "github.com/cloudflare/cfssl/config"
	"github.com/cloudflare/cfssl/csr"
	"github.com/cloudflare/cfssl/helpers"
	"github.com/cloudflare/cfssl/initca"
	"github.com/cloudflare/cfssl/signer"
	"github.com/cloudflare/cfssl/signer/local"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/netplan"
	"github.com/kubernix/kubernix/internal/paths"
)

const (
	// CA validity and leaf validity are both long-lived; this is a
	// development cluster, not a rotated production one (spec.md §4.3:
	// "certificate validity is long (years)").
	caValidityHours   = 10 * 365 * 24
	leafValidityHours = 10 * 365 * 24
)

// Identity names the well-known bundle members, excluding per-node kubelets
// which are addressed separately since their count is dynamic.
const (
	Admin             = "admin"
	APIServer         = "apiserver"
	ControllerManager = "controller-manager"
	Scheduler         = "scheduler"
	ServiceAccount    = "service-account"
	Proxy             = "proxy"
)

func KubeletIdentity(i int) string { return fmt.Sprintf("kubelet-%d", i) }

// NodeName returns the Kubernetes node name kubelet i registers under: the
// real hostname for node 0 (the normal, single-node default path), since
// that's what its --hostname-override resolves to, and "node-<i>" for
// every containerized node. Shared by the kubelet identity's cert CN
// (below) and components.Kubelet's --hostname-override so the two never
// drift apart — a mismatch means the Node authorizer rejects the kubelet's
// own Node object under --authorization-mode=Node,RBAC.
func NodeName(i int, hostname string) string {
	if i == 0 && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("node-%d", i)
}

// Bundle is a handle to the PKI artifacts on disk; certs/keys are read back
// from paths rather than held in memory, since every consumer (kubeconfig,
// component argv) just needs file paths.
type Bundle struct {
	Paths paths.Paths
	Names []string // every identity name generated this run, CA excluded
}

func (b Bundle) CACert() string          { return b.Paths.PkiCert("ca") }
func (b Bundle) CAKey() string           { return b.Paths.PkiKey("ca") }
func (b Bundle) Cert(name string) string { return b.Paths.PkiCert(name) }
func (b Bundle) Key(name string) string  { return b.Paths.PkiKey(name) }

type identitySpec struct {
	name  string
	cn    string
	org   string
	hosts []string
}

// Generate materializes the PKI bundle for a run. If pki/ca.pem already
// exists, every artifact is reused as-is (spec.md §4.3's idempotent
// bootstrap) — this run makes no further cfssl calls.
func Generate(p paths.Paths, plan netplan.Plan, nodeCount int, apiserverHostname string) (Bundle, error) {
	names := identityList(nodeCount)
	bundle := Bundle{Paths: p, Names: names}

	if _, err := os.Stat(p.PkiCert("ca")); err == nil {
		return bundle, nil
	}

	if err := os.MkdirAll(p.PkiDir(), 0o755); err != nil {
		return Bundle{}, kubernixerr.New(kubernixerr.PkiError, "", fmt.Errorf("creating pki dir: %w", err))
	}

	caCert, caKey, err := generateCA(p)
	if err != nil {
		return Bundle{}, err
	}

	caConfig := &cfsslconfig.Signing{
		Default: &cfsslconfig.SigningProfile{
			Usage:  []string{"signing", "key encipherment", "server auth", "client auth"},
			Expiry: leafValidityHours * 3600 * 1e9,
		},
	}
	s, err := local.NewSigner(caKey, caCert, signer.DefaultSigAlgo(caKey), caConfig)
	if err != nil {
		return Bundle{}, kubernixerr.New(kubernixerr.PkiError, "", fmt.Errorf("creating CA signer: %w", err))
	}

	for _, spec := range identitySpecs(plan, nodeCount, apiserverHostname) {
		if err := signIdentity(p, s, spec); err != nil {
			return Bundle{}, err
		}
	}

	return bundle, nil
}

func identityList(nodeCount int) []string {
	names := []string{Admin, APIServer, ControllerManager, Scheduler, ServiceAccount, Proxy}
	for i := 0; i < nodeCount; i++ {
		names = append(names, KubeletIdentity(i))
	}
	return names
}

func identitySpecs(plan netplan.Plan, nodeCount int, apiserverHostname string) []identitySpec {
	apiserverHosts := []string{
		"127.0.0.1",
		"kubernetes",
		"kubernetes.default",
		"kubernetes.default.svc",
		"kubernetes.default.svc.cluster.local",
		plan.KubernetesServiceIP.String(),
		plan.APIAdvertiseIP.String(),
	}
	if apiserverHostname != "" {
		apiserverHosts = append(apiserverHosts, apiserverHostname)
	}

	specs := []identitySpec{
		{name: Admin, cn: "admin", org: "system:masters"},
		{name: APIServer, cn: "kubernetes", org: "kubernetes", hosts: apiserverHosts},
		{name: ControllerManager, cn: "system:kube-controller-manager", org: "system:kube-controller-manager"},
		{name: Scheduler, cn: "system:kube-scheduler", org: "system:kube-scheduler"},
		{name: ServiceAccount, cn: "service-accounts", org: "kubernetes"},
		{name: Proxy, cn: "system:kube-proxy", org: "system:node-proxier"},
	}
	for i := 0; i < nodeCount; i++ {
		nodeName := NodeName(i, apiserverHostname)
		specs = append(specs, identitySpec{
			name:  KubeletIdentity(i),
			cn:    "system:node:" + nodeName,
			org:   "system:nodes",
			hosts: []string{plan.NodeIPs[i].String(), nodeName},
		})
	}
	return specs
}

// generateCA creates the CA keypair, writes its PEM files, and returns the
// parsed forms local.NewSigner needs — avoiding a redundant disk read.
func generateCA(p paths.Paths) (*x509.Certificate, crypto.Signer, error) {
	req := &csr.CertificateRequest{
		CN:         "kubernetes",
		Names:      []csr.Name{{O: "kubernetes"}},
		KeyRequest: &csr.KeyRequest{A: "ecdsa", S: 256},
		CA: &csr.CAConfig{
			PathLength: 1,
			Expiry:     fmt.Sprintf("%dh", caValidityHours),
		},
	}
	certBytes, _, keyBytes, err := initca.New(req)
	if err != nil {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("generating CA: %w", err))
	}
	if err := os.WriteFile(p.PkiCert("ca"), certBytes, 0o644); err != nil {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("writing CA cert: %w", err))
	}
	if err := os.WriteFile(p.PkiKey("ca"), keyBytes, 0o600); err != nil {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("writing CA key: %w", err))
	}

	parsedCert, err := helpers.ParseCertificatePEM(certBytes)
	if err != nil {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("parsing generated CA cert: %w", err))
	}
	parsedKey, err := helpers.ParsePrivateKeyPEM(keyBytes)
	if err != nil {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("parsing generated CA key: %w", err))
	}
	signerKey, ok := parsedKey.(crypto.Signer)
	if !ok {
		return nil, nil, kubernixerr.New(kubernixerr.PkiError, "ca", fmt.Errorf("CA key does not implement crypto.Signer"))
	}
	return parsedCert, signerKey, nil
}

func signIdentity(p paths.Paths, s *local.Signer, spec identitySpec) error {
	req := &csr.CertificateRequest{
		CN:         spec.cn,
		Names:      []csr.Name{{O: spec.org}},
		KeyRequest: &csr.KeyRequest{A: "ecdsa", S: 256},
		Hosts:      spec.hosts,
	}
	generator := &csr.Generator{Validator: func(*csr.CertificateRequest) error { return nil }}
	csrBytes, keyBytes, err := generator.ProcessRequest(req)
	if err != nil {
		return kubernixerr.New(kubernixerr.PkiError, spec.name, fmt.Errorf("generating CSR: %w", err))
	}
	pemCSR := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE REQUEST", Bytes: csrBytes})

	certBytes, err := s.Sign(signer.SignRequest{Request: string(pemCSR)})
	if err != nil {
		return kubernixerr.New(kubernixerr.PkiError, spec.name, fmt.Errorf("signing certificate: %w", err))
	}
	pemCert := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certBytes})

	if err := os.WriteFile(p.PkiCert(spec.name), pemCert, 0o644); err != nil {
		return kubernixerr.New(kubernixerr.PkiError, spec.name, fmt.Errorf("writing certificate: %w", err))
	}
	if err := os.WriteFile(p.PkiKey(spec.name), keyBytes, 0o600); err != nil {
		return kubernixerr.New(kubernixerr.PkiError, spec.name, fmt.Errorf("writing key: %w", err))
	}
	return nil
}
