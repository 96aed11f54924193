// Package kubeconfig assembles per-identity kubeconfig documents that
// reference PKI outputs by absolute path (spec.md §3, §4.6). Structure and
// YAML tagging follow the teacher CLI's config.go kubeconfig rendering,
// generalized to cover every PKI identity rather than a single admin file.
package kubeconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kubernix/kubernix/internal/kubernixerr"
	"github.com/kubernix/kubernix/internal/pki"
)

type cluster struct {
	Server                   string `yaml:"server"`
	CertificateAuthority     string `yaml:"certificate-authority"`
}

type namedCluster struct {
	Name    string  `yaml:"name"`
	Cluster cluster `yaml:"cluster"`
}

type authInfo struct {
	ClientCertificate string `yaml:"client-certificate"`
	ClientKey         string `yaml:"client-key"`
}

type namedAuthInfo struct {
	Name string   `yaml:"name"`
	User authInfo `yaml:"user"`
}

type contextSpec struct {
	Cluster string `yaml:"cluster"`
	User    string `yaml:"user"`
}

type namedContext struct {
	Name    string      `yaml:"name"`
	Context contextSpec `yaml:"context"`
}

// document is the shape kubectl/client-go expect for a kubeconfig file.
type document struct {
	APIVersion     string          `yaml:"apiVersion"`
	Kind           string          `yaml:"kind"`
	Clusters       []namedCluster  `yaml:"clusters"`
	Users          []namedAuthInfo `yaml:"users"`
	Contexts       []namedContext  `yaml:"contexts"`
	CurrentContext string          `yaml:"current-context"`
}

// Write renders and writes the kubeconfig for identity name, pointing the
// cluster entry at server and the user entry at the identity's PKI cert/key.
func Write(bundle pki.Bundle, name, server string) (string, error) {
	doc := document{
		APIVersion: "v1",
		Kind:       "Config",
		Clusters: []namedCluster{{
			Name: "kubernix",
			Cluster: cluster{
				Server:               server,
				CertificateAuthority: bundle.CACert(),
			},
		}},
		Users: []namedAuthInfo{{
			Name: name,
			User: authInfo{
				ClientCertificate: bundle.Cert(name),
				ClientKey:         bundle.Key(name),
			},
		}},
		Contexts: []namedContext{{
			Name: "kubernix",
			Context: contextSpec{
				Cluster: "kubernix",
				User:    name,
			},
		}},
		CurrentContext: "kubernix",
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", kubernixerr.New(kubernixerr.ConfigError, name, fmt.Errorf("marshaling kubeconfig: %w", err))
	}

	path := bundle.Paths.Kubeconfig(name)
	if err := os.MkdirAll(bundle.Paths.KubeconfigDir(), 0o755); err != nil {
		return "", kubernixerr.New(kubernixerr.ConfigError, name, fmt.Errorf("creating kubeconfig dir: %w", err))
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return "", kubernixerr.New(kubernixerr.ConfigError, name, fmt.Errorf("writing kubeconfig: %w", err))
	}
	return path, nil
}

// WriteAll renders a kubeconfig for every identity that needs one: admin,
// controller-manager, scheduler, proxy, and every kubelet. apiserver and
// service-account identities are consumed directly by PKI paths, not via a
// kubeconfig, and are skipped.
func WriteAll(bundle pki.Bundle, nodeCount int, apiServer string) (map[string]string, error) {
	server := fmt.Sprintf("https://%s", apiServer)
	names := []string{pki.Admin, pki.ControllerManager, pki.Scheduler, pki.Proxy}
	for i := 0; i < nodeCount; i++ {
		names = append(names, pki.KubeletIdentity(i))
	}

	paths := make(map[string]string, len(names))
	for _, name := range names {
		p, err := Write(bundle, name, server)
		if err != nil {
			return nil, err
		}
		paths[name] = p
	}
	return paths, nil
}
