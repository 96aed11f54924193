package assets

import (
	"net"
	"os"
	"strings"
	"testing"

	"github.com/kubernix/kubernix/internal/netplan"
	"github.com/kubernix/kubernix/internal/paths"
)

func testPlan(t *testing.T) netplan.Plan {
	t.Helper()
	_, base, err := net.ParseCIDR("10.10.0.0/16")
	if err != nil {
		t.Fatal(err)
	}
	plan, err := netplan.Compute(base, 2)
	if err != nil {
		t.Fatalf("netplan.Compute failed: %v", err)
	}
	return plan
}

func TestWriteEncryptionConfigProducesBase64Key(t *testing.T) {
	p := paths.New(t.TempDir())
	if err := WriteEncryptionConfig(p); err != nil {
		t.Fatalf("WriteEncryptionConfig failed: %v", err)
	}
	data, err := os.ReadFile(p.EncryptionConfig())
	if err != nil {
		t.Fatalf("reading encryption config: %v", err)
	}
	if !strings.Contains(string(data), "aescbc") {
		t.Errorf("expected aescbc provider in encryption config, got: %s", data)
	}
}

func TestWriteCRIOAssetsUsesCRICIDR(t *testing.T) {
	p := paths.New(t.TempDir())
	plan := testPlan(t)

	if err := WriteCRIOAssets(p, 0, plan, "/nix/hermetic"); err != nil {
		t.Fatalf("WriteCRIOAssets failed: %v", err)
	}

	conflist, err := os.ReadFile(p.CrioCNIConf(0))
	if err != nil {
		t.Fatalf("reading cni conflist: %v", err)
	}
	if !strings.Contains(string(conflist), plan.CRICIDR.String()) {
		t.Errorf("expected cni conflist to reference cri_cidr %s, got: %s", plan.CRICIDR, conflist)
	}

	if _, err := os.Stat(p.CrioConf(0)); err != nil {
		t.Errorf("expected crio.conf on disk: %v", err)
	}
	if _, err := os.Stat(p.CrioPolicy(0)); err != nil {
		t.Errorf("expected policy.json on disk: %v", err)
	}
}

func TestWriteCoreDNSManifestUsesDNSServiceIP(t *testing.T) {
	p := paths.New(t.TempDir())
	plan := testPlan(t)

	path, err := WriteCoreDNSManifest(p, plan)
	if err != nil {
		t.Fatalf("WriteCoreDNSManifest failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), plan.DNSServiceIP.String()) {
		t.Errorf("expected manifest to pin clusterIP to dns_service_ip %s, got: %s", plan.DNSServiceIP, data)
	}
}

func TestWriteProxyConfigUsesClusterCIDR(t *testing.T) {
	p := paths.New(t.TempDir())
	plan := testPlan(t)

	if err := WriteProxyConfig(p, 0, plan); err != nil {
		t.Fatalf("WriteProxyConfig failed: %v", err)
	}
	data, err := os.ReadFile(p.ProxyConfig(0))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), plan.ClusterCIDR.String()) {
		t.Errorf("expected proxy config to reference cluster_cidr %s, got: %s", plan.ClusterCIDR, data)
	}
	if !strings.Contains(string(data), "iptables") {
		t.Errorf("expected iptables mode in proxy config, got: %s", data)
	}
}

func TestWriteKubeletConfigUsesPerNodeCIDR(t *testing.T) {
	p := paths.New(t.TempDir())
	plan := testPlan(t)

	if err := WriteKubeletConfig(p, 1, plan); err != nil {
		t.Fatalf("WriteKubeletConfig failed: %v", err)
	}
	data, err := os.ReadFile(p.KubeletConfig(1))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), plan.PerNodeCIDRs[1].String()) {
		t.Errorf("expected kubelet config to reference per_node_cidrs[1] %s, got: %s", plan.PerNodeCIDRs[1], data)
	}
	if !strings.Contains(string(data), plan.DNSServiceIP.String()) {
		t.Errorf("expected kubelet config clusterDNS to reference dns_service_ip, got: %s", data)
	}
}
