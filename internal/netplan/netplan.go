// Package netplan subdivides a single user-supplied CIDR into the
// service, cluster, CRI, and per-node ranges KuberNix's control plane and
// kubelets need, without overlap (spec.md §3, §4.2).
package netplan

import (
	"fmt"
	"math/bits"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

// Plan is spec.md §3's NetworkPlan. Immutable once returned by Compute.
type Plan struct {
	ServiceCIDR         *net.IPNet
	ClusterCIDR         *net.IPNet
	CRICIDR             *net.IPNet
	PerNodeCIDRs        []*net.IPNet
	NodeIPs             []net.IP
	APIAdvertiseIP      net.IP
	DNSServiceIP        net.IP
	DNSClusterIP        net.IP
	KubernetesServiceIP net.IP
}

// Compute splits base into ServiceCIDR (a /24 carved off the high half),
// ClusterCIDR (the low half), CRICIDR (a second /24 from the high half),
// and nodes equal-size PerNodeCIDRs subdividing ClusterCIDR.
func Compute(base *net.IPNet, nodes int) (Plan, error) {
	if nodes < 1 {
		return Plan{}, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("nodes must be >= 1, got %d", nodes))
	}

	baseOnes, baseBits := base.Mask.Size()
	if baseBits != 32 {
		return Plan{}, kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf("only IPv4 CIDRs are supported, got %s", base))
	}

	// Split the address space into a low half (cluster_cidr) and a high
	// half, which in turn yields two /24s: service_cidr and cri_cidr.
	if baseOnes+1 > 32 {
		return Plan{}, tooSmall(base, nodes)
	}
	lowHalf, err := cidr.Subnet(base, 1, 0)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}
	highHalf, err := cidr.Subnet(base, 1, 1)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}

	highOnes, _ := highHalf.Mask.Size()
	if highOnes > 24 {
		return Plan{}, tooSmall(base, nodes)
	}
	serviceBits := 24 - highOnes
	serviceCIDR, err := cidr.Subnet(highHalf, serviceBits, 0)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}
	criCIDR, err := cidr.Subnet(highHalf, serviceBits, 1)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}

	clusterCIDR := lowHalf
	clusterOnes, _ := clusterCIDR.Mask.Size()
	nodeBits := 0
	if nodes > 1 {
		nodeBits = bits.Len(uint(nodes - 1))
	}
	if clusterOnes+nodeBits > 32 {
		return Plan{}, tooSmall(base, nodes)
	}

	perNode := make([]*net.IPNet, nodes)
	nodeIPs := make([]net.IP, nodes)
	for i := 0; i < nodes; i++ {
		sub, err := cidr.Subnet(clusterCIDR, nodeBits, i)
		if err != nil {
			return Plan{}, tooSmall(base, nodes)
		}
		perNode[i] = sub
		ip, err := cidr.Host(sub, 1)
		if err != nil {
			return Plan{}, tooSmall(base, nodes)
		}
		nodeIPs[i] = ip
	}

	dnsIP, err := cidr.Host(serviceCIDR, 10)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}
	kubeIP, err := cidr.Host(serviceCIDR, 1)
	if err != nil {
		return Plan{}, tooSmall(base, nodes)
	}

	return Plan{
		ServiceCIDR:         serviceCIDR,
		ClusterCIDR:         clusterCIDR,
		CRICIDR:             criCIDR,
		PerNodeCIDRs:        perNode,
		NodeIPs:             nodeIPs,
		APIAdvertiseIP:      nodeIPs[0],
		DNSServiceIP:        dnsIP,
		DNSClusterIP:        dnsIP,
		KubernetesServiceIP: kubeIP,
	}, nil
}

func tooSmall(base *net.IPNet, nodes int) error {
	return kubernixerr.New(kubernixerr.ConfigError, "", fmt.Errorf(
		"CIDR %s does not have enough address bits to split into service/cluster/cri ranges and %d node subnet(s)", base, nodes))
}
