package netplan

import (
	"net"
	"testing"
)

func parseCIDR(t *testing.T, s string) *net.IPNet {
	t.Helper()
	_, n, err := net.ParseCIDR(s)
	if err != nil {
		t.Fatalf("bad test CIDR %q: %v", s, err)
	}
	return n
}

func TestComputeDisjointAndContained(t *testing.T) {
	base := parseCIDR(t, "10.10.0.0/16")
	plan, err := Compute(base, 3)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	ranges := []*net.IPNet{plan.ServiceCIDR, plan.ClusterCIDR, plan.CRICIDR}
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			if overlaps(ranges[i], ranges[j]) {
				t.Errorf("ranges %s and %s overlap", ranges[i], ranges[j])
			}
		}
	}

	for i, sub := range plan.PerNodeCIDRs {
		if !contains(plan.ClusterCIDR, sub) {
			t.Errorf("per-node CIDR %d (%s) is not within cluster CIDR %s", i, sub, plan.ClusterCIDR)
		}
	}
	for i := 0; i < len(plan.PerNodeCIDRs); i++ {
		for j := i + 1; j < len(plan.PerNodeCIDRs); j++ {
			if overlaps(plan.PerNodeCIDRs[i], plan.PerNodeCIDRs[j]) {
				t.Errorf("per-node CIDRs %d and %d overlap", i, j)
			}
		}
	}

	if !plan.ServiceCIDR.Contains(plan.DNSServiceIP) {
		t.Errorf("dns_service_ip %s not within service CIDR %s", plan.DNSServiceIP, plan.ServiceCIDR)
	}
	if !plan.ServiceCIDR.Contains(plan.KubernetesServiceIP) {
		t.Errorf("kubernetes_service_ip %s not within service CIDR %s", plan.KubernetesServiceIP, plan.ServiceCIDR)
	}
	if plan.APIAdvertiseIP.String() != plan.NodeIPs[0].String() {
		t.Errorf("api_advertise_ip should equal node_ips[0]")
	}
}

func TestComputeSingleNode(t *testing.T) {
	base := parseCIDR(t, "10.10.0.0/16")
	plan, err := Compute(base, 1)
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if len(plan.PerNodeCIDRs) != 1 || len(plan.NodeIPs) != 1 {
		t.Fatalf("expected exactly one node range/ip")
	}
	if !contains(plan.ClusterCIDR, plan.PerNodeCIDRs[0]) {
		t.Errorf("single node CIDR must be within cluster CIDR")
	}
}

func TestComputeFailsWhenCIDRTooSmall(t *testing.T) {
	base := parseCIDR(t, "10.0.0.0/28")
	if _, err := Compute(base, 8); err == nil {
		t.Fatal("expected an error for a CIDR too small to split for 8 nodes")
	}
}

func TestComputeRejectsInvalidNodeCount(t *testing.T) {
	base := parseCIDR(t, "10.0.0.0/16")
	if _, err := Compute(base, 0); err == nil {
		t.Fatal("expected an error for nodes < 1")
	}
}

func contains(outer, inner *net.IPNet) bool {
	outerOnes, _ := outer.Mask.Size()
	innerOnes, _ := inner.Mask.Size()
	if innerOnes < outerOnes {
		return false
	}
	return outer.Contains(inner.IP)
}

func overlaps(a, b *net.IPNet) bool {
	return a.Contains(b.IP) || b.Contains(a.IP)
}
