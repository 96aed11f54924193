// Package assets renders the static configuration files every component
// needs before it can start (spec.md §4.4): the encryption-at-rest key,
// CRI-O's conf/policy/CNI triad, the CoreDNS manifest, kube-proxy's config,
// and each node's kubelet config. Rendering follows the teacher CLI's
// helpers.go, which builds generated files via fmt.Sprintf; here the CNI
// conflist and the kubelet config use text/template instead.
package assets

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/netplan"
	"github.com/kubernix/kubernix/internal/paths"
)

// cniConflistTemplate and kubeletConfigTemplate are the only text/template
// renderings; every other asset here stays a plain Sprintf/string literal
// (crio.conf included, despite its seven substitution points) the way the
// teacher's own helpers.go mixes the two.
var cniConflistTemplate = template.Must(template.New("cni-conflist").Parse(`{
  "cniVersion": "1.0.0",
  "name": "kubernix-cni-{{.Index}}",
  "plugins": [
    {
      "type": "bridge",
      "bridge": "crio-br{{.Index}}",
      "isGateway": true,
      "ipMasq": true,
      "ipam": {
        "type": "host-local",
        "subnet": "{{.Subnet}}",
        "routes": [{"dst": "0.0.0.0/0"}]
      }
    },
    {"type": "loopback"}
  ]
}
`))

var kubeletConfigTemplate = template.Must(template.New("kubelet-config").Parse(`apiVersion: kubelet.config.k8s.io/v1beta1
kind: KubeletConfiguration
podCIDR: "{{.PodCIDR}}"
clusterDomain: "cluster.local"
clusterDNS:
  - "{{.ClusterDNS}}"
resolvConf: "/etc/resolv.conf"
runtimeRequestTimeout: "15m"
tlsCertFile: "{{.TLSCertFile}}"
tlsPrivateKeyFile: "{{.TLSKeyFile}}"
authentication:
  anonymous:
    enabled: false
  x509:
    clientCAFile: "{{.ClientCAFile}}"
authorization:
  mode: Webhook
`))

func render(t *template.Template, data any) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", kubernixerr.New(kubernixerr.ConfigError, t.Name(), fmt.Errorf("rendering template: %w", err))
	}
	return buf.String(), nil
}

// WriteEncryptionConfig generates a fresh random 32-byte key and writes the
// apiserver's at-rest encryption provider config.
func WriteEncryptionConfig(p paths.Paths) error {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, "encryptionconfig", fmt.Errorf("generating encryption key: %w", err))
	}
	encoded := base64.StdEncoding.EncodeToString(key)

	content := fmt.Sprintf(`kind: EncryptionConfiguration
apiVersion: apiserver.config.k8s.io/v1
resources:
  - resources:
      - secrets
    providers:
      - aescbc:
          keys:
            - name: key1
              secret: %s
      - identity: {}
`, encoded)

	return writeComponentFile(p.EncryptionConfigDir(), p.EncryptionConfig(), content)
}

// WriteCRIOAssets renders CRI-O's conf file, signature policy, and CNI
// bridge conflist for node i, with the CNI network carved out of cri_cidr.
func WriteCRIOAssets(p paths.Paths, i int, plan netplan.Plan, runDir string) error {
	conf := fmt.Sprintf(`[crio]
root = "%s/storage"
runroot = "%s/run"
storage_driver = "overlay"
log_dir = "%s"

[crio.api]
listen = "%s"

[crio.runtime]
default_runtime = "runc"
conmon = "%s/bin/conmon"

[crio.network]
network_dir = "%s/cni"
plugin_dirs = ["%s/bin"]
`, p.CrioDir(i), p.CrioDir(i), p.CrioDir(i), p.CrioSocket(i), runDir, p.CrioDir(i), runDir)

	if err := writeComponentFile(p.CrioDir(i), p.CrioConf(i), conf); err != nil {
		return err
	}

	policy := `{
  "default": [{"type": "insecureAcceptAnything"}]
}
`
	if err := writeComponentFile(p.CrioDir(i), p.CrioPolicy(i), policy); err != nil {
		return err
	}

	conflist, err := render(cniConflistTemplate, struct {
		Index  int
		Subnet string
	}{Index: i, Subnet: plan.CRICIDR.String()})
	if err != nil {
		return err
	}

	return writeComponentFile(p.CrioDir(i), p.CrioCNIConf(i), conflist)
}

// WriteCoreDNSManifest renders CoreDNS's ServiceAccount/Deployment/Service
// manifest, with the Service's clusterIP pinned to dns_service_ip.
func WriteCoreDNSManifest(p paths.Paths, plan netplan.Plan) (string, error) {
	manifest := fmt.Sprintf(`apiVersion: v1
kind: ServiceAccount
metadata:
  name: coredns
  namespace: kube-system
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: coredns
  namespace: kube-system
  labels:
    k8s-app: kube-dns
spec:
  replicas: 1
  selector:
    matchLabels:
      k8s-app: kube-dns
  template:
    metadata:
      labels:
        k8s-app: kube-dns
    spec:
      serviceAccountName: coredns
      containers:
        - name: coredns
          image: coredns/coredns:1.11.1
          args: ["-conf", "/etc/coredns/Corefile"]
          volumeMounts:
            - name: config-volume
              mountPath: /etc/coredns
      volumes:
        - name: config-volume
          configMap:
            name: coredns
---
apiVersion: v1
kind: ConfigMap
metadata:
  name: coredns
  namespace: kube-system
data:
  Corefile: |
    cluster.local {
        kubernetes cluster.local in-addr.arpa ip6.arpa {
            pods insecure
            fallthrough in-addr.arpa ip6.arpa
        }
        forward . /etc/resolv.conf
        cache 30
    }
---
apiVersion: v1
kind: Service
metadata:
  name: kube-dns
  namespace: kube-system
  labels:
    k8s-app: kube-dns
spec:
  selector:
    k8s-app: kube-dns
  clusterIP: %s
  ports:
    - name: dns
      port: 53
      protocol: UDP
    - name: dns-tcp
      port: 53
      protocol: TCP
`, plan.DNSServiceIP.String())

	path := filepath.Join(p.CoreDNSDir(), "coredns.yml")
	if err := writeComponentFile(p.CoreDNSDir(), path, manifest); err != nil {
		return "", err
	}
	return path, nil
}

// WriteProxyConfig renders kube-proxy's config for node i, pointing
// clusterCIDR at cluster_cidr and using iptables mode.
func WriteProxyConfig(p paths.Paths, i int, plan netplan.Plan) error {
	content := fmt.Sprintf(`apiVersion: kubeproxy.config.k8s.io/v1alpha1
kind: KubeProxyConfiguration
clientConnection:
  kubeconfig: "%s"
clusterCIDR: "%s"
mode: "iptables"
`, p.Kubeconfig("proxy"), plan.ClusterCIDR.String())

	return writeComponentFile(p.ProxyDir(i), p.ProxyConfig(i), content)
}

// WriteKubeletConfig renders kubelet's config for node i: podCIDR from
// per_node_cidrs[i], clusterDNS pointed at dns_service_ip.
func WriteKubeletConfig(p paths.Paths, i int, plan netplan.Plan) error {
	identity := fmt.Sprintf("kubelet-%d", i)
	content, err := render(kubeletConfigTemplate, struct {
		PodCIDR      string
		ClusterDNS   string
		TLSCertFile  string
		TLSKeyFile   string
		ClientCAFile string
	}{
		PodCIDR:      plan.PerNodeCIDRs[i].String(),
		ClusterDNS:   plan.DNSServiceIP.String(),
		TLSCertFile:  p.PkiCert(identity),
		TLSKeyFile:   p.PkiKey(identity),
		ClientCAFile: p.PkiCert("ca"),
	})
	if err != nil {
		return err
	}

	return writeComponentFile(p.KubeletDir(i), p.KubeletConfig(i), content)
}

func writeComponentFile(dir, path, content string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, dir, fmt.Errorf("creating directory: %w", err))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return kubernixerr.New(kubernixerr.ConfigError, path, fmt.Errorf("writing %s: %w", path, err))
	}
	return nil
}
