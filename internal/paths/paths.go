// Package paths defines the canonical directory layout under a KuberNix
// run root, matching the filesystem layout in spec.md §6.
package paths

import (
	"fmt"
	"path/filepath"
)

// Paths is a value type: every method just joins the immutable root.
// Passed by value through Config/PKI/NetworkPlan the way spec.md §9
// describes for the other immutable per-run handles.
type Paths struct {
	Root string
}

// New wraps root in a Paths handle as given, without canonicalizing it.
// Callers are expected to pass an absolute root (config.Resolve makes it
// absolute with filepath.Abs).
func New(root string) Paths { return Paths{Root: root} }

func (p Paths) Toml() string                { return filepath.Join(p.Root, "kubernix.toml") }
func (p Paths) EnvFile() string             { return filepath.Join(p.Root, "kubernix.env") }
func (p Paths) PkiDir() string              { return filepath.Join(p.Root, "pki") }
func (p Paths) KubeconfigDir() string       { return filepath.Join(p.Root, "kubeconfig") }
func (p Paths) EncryptionConfigDir() string { return filepath.Join(p.Root, "encryptionconfig") }
func (p Paths) CoreDNSDir() string          { return filepath.Join(p.Root, "coredns") }
func (p Paths) ProxyDir(i int) string       { return filepath.Join(p.Root, componentDir("proxy", i)) }
func (p Paths) KubeletDir(i int) string     { return filepath.Join(p.Root, componentDir("kubelet", i)) }
func (p Paths) CrioDir(i int) string        { return filepath.Join(p.Root, componentDir("crio", i)) }
func (p Paths) NixDir() string              { return filepath.Join(p.Root, "nix") }

func (p Paths) ComponentDir(name string) string { return filepath.Join(p.Root, name) }

func (p Paths) PkiCert(name string) string { return filepath.Join(p.PkiDir(), name+".pem") }
func (p Paths) PkiKey(name string) string  { return filepath.Join(p.PkiDir(), name+"-key.pem") }
func (p Paths) Kubeconfig(name string) string {
	return filepath.Join(p.KubeconfigDir(), name+".kubeconfig")
}

func (p Paths) EncryptionConfig() string {
	return filepath.Join(p.EncryptionConfigDir(), "config.yml")
}

func (p Paths) CrioSocket(i int) string { return filepath.Join(p.CrioDir(i), "crio.sock") }
func (p Paths) CrioConf(i int) string   { return filepath.Join(p.CrioDir(i), "crio.conf") }
func (p Paths) CrioPolicy(i int) string { return filepath.Join(p.CrioDir(i), "policy.json") }
func (p Paths) CrioCNIConf(i int) string {
	return filepath.Join(p.CrioDir(i), "cni", "10-bridge.conflist")
}

func (p Paths) KubeletConfig(i int) string {
	return filepath.Join(p.KubeletDir(i), fmt.Sprintf("config-%d.yml", i))
}
func (p Paths) ProxyConfig(i int) string { return filepath.Join(p.ProxyDir(i), "config.yml") }

func (p Paths) RunDescriptor(componentDirName string) string {
	return filepath.Join(p.Root, componentDirName, "run.yml")
}

func (p Paths) LogFile(componentDirName, name string) string {
	return filepath.Join(p.Root, componentDirName, name+".log")
}

func componentDir(name string, i int) string {
	return fmt.Sprintf("%s-%d", name, i)
}
