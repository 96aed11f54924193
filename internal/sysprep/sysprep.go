// Package sysprep verifies and prepares the host for running a rootful
// cluster: effective UID 0, required kernel modules loaded, and sysctls
// set (spec.md §4.10). Skipped entirely when container_mode is true, since
// the host is assumed already prepared by whatever launched the container.
// Grounded in the teacher CLI's internal/system/dependencies.go, which
// shells out via exec.Command/exec.LookPath to probe the host the same way.
package sysprep

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

// componentBinaries lists the binaries every supervised component spawns,
// grounded in the teacher CLI's DependencyChecker (internal/system/
// dependencies.go), which LookPath-checked kubectl/git the same way before
// running anything. KuberNix's preflight is wider since it supervises the
// whole control plane rather than shelling out to one pre-installed tool.
var componentBinaries = []string{
	"etcd", "kube-apiserver", "kube-controller-manager", "kube-scheduler",
	"kubelet", "kube-proxy", "kubectl", "crictl", "crio",
}

// CheckBinaries verifies every component binary and runtimeBin are present
// on PATH before bootstrap spends time on PKI/network planning it would
// have to unwind. extraPackages are additional binaries the caller expects
// an overlay to provide (spec.md §6's --packages), checked the same way.
func CheckBinaries(runtimeBin string, extraPackages []string) error {
	bins := append(append([]string{}, componentBinaries...), runtimeBin)
	bins = append(bins, extraPackages...)

	var missing []string
	for _, bin := range bins {
		if _, err := exec.LookPath(bin); err != nil {
			missing = append(missing, bin)
		}
	}
	if len(missing) > 0 {
		return kubernixerr.New(kubernixerr.ConfigError, "sysprep", fmt.Errorf(
			"missing required binaries on PATH: %s", strings.Join(missing, ", ")))
	}
	return nil
}

var requiredModules = []string{"overlay", "br_netfilter", "ip_conntrack"}

var requiredSysctls = map[string]string{
	"net.bridge.bridge-nf-call-iptables": "1",
	"net.ipv4.ip_forward":                "1",
	"net.ipv4.conf.all.route_localnet":   "1",
}

// Check runs every prerequisite check and returns the first failure.
// Skipped by the caller entirely when containerMode is true.
func Check() error {
	if os.Geteuid() != 0 {
		return kubernixerr.New(kubernixerr.ConfigError, "sysprep", fmt.Errorf("kubernix must run as root (effective uid 0)"))
	}
	for _, mod := range requiredModules {
		if err := modprobe(mod); err != nil {
			return kubernixerr.New(kubernixerr.ConfigError, "sysprep", fmt.Errorf("loading kernel module %s: %w", mod, err))
		}
	}
	for key, value := range requiredSysctls {
		if err := sysctl(key, value); err != nil {
			return kubernixerr.New(kubernixerr.ConfigError, "sysprep", fmt.Errorf("setting sysctl %s=%s: %w", key, value, err))
		}
	}
	return nil
}

func modprobe(name string) error {
	out, err := exec.Command("modprobe", name).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

func sysctl(key, value string) error {
	out, err := exec.Command("sysctl", "-w", fmt.Sprintf("%s=%s", key, value)).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, out)
	}
	return nil
}

// MountsUnder scans /proc/self/mountinfo for mount points within root,
// deepest first, so teardown can unmount them in an order that won't fail
// on a still-nested child mount. An empty root has no mounts within it.
func MountsUnder(root string) ([]string, error) {
	if root == "" {
		return nil, nil
	}
	f, err := os.Open("/proc/self/mountinfo")
	if err != nil {
		return nil, kubernixerr.New(kubernixerr.TeardownError, "sysprep", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, kubernixerr.New(kubernixerr.TeardownError, "sysprep", err)
	}
	return filterAndSortMounts(lines, root), nil
}

// filterAndSortMounts extracts mount points within root from raw
// /proc/self/mountinfo lines and sorts them deepest-path-first.
func filterAndSortMounts(lines []string, root string) []string {
	trimmedRoot := strings.TrimRight(root, "/")
	prefix := trimmedRoot + "/"

	var mounts []string
	for _, line := range lines {
		fields := strings.Fields(line)
		// mountinfo format: ... <mount point> ... ; field index 4 is the
		// mount point relative to the process root.
		if len(fields) < 5 {
			continue
		}
		mp := fields[4]
		if mp == trimmedRoot || strings.HasPrefix(mp, prefix) {
			mounts = append(mounts, mp)
		}
	}

	sort.Slice(mounts, func(i, j int) bool { return len(mounts[i]) > len(mounts[j]) })
	return mounts
}

// UnmountAll unmounts every path in mounts, in the order given (callers
// should pass MountsUnder's deepest-first order), collecting rather than
// aborting on individual failures.
func UnmountAll(mounts []string) []error {
	var errs []error
	for _, mp := range mounts {
		if err := syscall.Unmount(mp, 0); err != nil {
			errs = append(errs, kubernixerr.New(kubernixerr.TeardownError, mp, err))
		}
	}
	return errs
}
