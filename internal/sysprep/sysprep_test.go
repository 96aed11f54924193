package sysprep

import (
	"strings"
	"testing"

	"github.com/kubernix/kubernix/internal/kubernixerr"
)

func TestCheckBinariesReportsEveryMissingName(t *testing.T) {
	err := CheckBinaries("definitely-not-a-real-runtime-binary", []string{"also-not-real"})
	if err == nil {
		t.Fatal("expected an error when required binaries are absent")
	}
	if !kubernixerr.Is(err, kubernixerr.ConfigError) {
		t.Errorf("expected ConfigError kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "definitely-not-a-real-runtime-binary") {
		t.Errorf("expected missing runtime binary named in error, got %v", err)
	}
	if !strings.Contains(err.Error(), "also-not-real") {
		t.Errorf("expected missing extra package binary named in error, got %v", err)
	}
}

func TestFilterAndSortMountsReturnsDeepestFirstUnderRoot(t *testing.T) {
	lines := []string{
		"36 35 98:0 / /kubernix-run rw,relatime shared:1 - ext4 /dev/root rw",
		"37 36 98:0 / /kubernix-run/crio-0/storage rw,relatime shared:2 - overlay overlay rw",
		"38 36 98:0 / /kubernix-run/crio-0/storage/overlay/1 rw,relatime shared:3 - overlay overlay rw",
		"39 35 98:0 / /var/lib/other rw,relatime shared:4 - ext4 /dev/root rw",
	}

	mounts := filterAndSortMounts(lines, "/kubernix-run")

	want := []string{
		"/kubernix-run/crio-0/storage/overlay/1",
		"/kubernix-run/crio-0/storage",
		"/kubernix-run",
	}
	if len(mounts) != len(want) {
		t.Fatalf("expected %d mounts, got %v", len(want), mounts)
	}
	for i, w := range want {
		if mounts[i] != w {
			t.Errorf("position %d: expected %q, got %q (full: %v)", i, w, mounts[i], mounts)
		}
	}
}

func TestFilterAndSortMountsExcludesUnrelatedMounts(t *testing.T) {
	lines := []string{
		"39 35 98:0 / /var/lib/other rw,relatime shared:4 - ext4 /dev/root rw",
	}
	mounts := filterAndSortMounts(lines, "/kubernix-run")
	if len(mounts) != 0 {
		t.Errorf("expected no mounts under /kubernix-run, got %v", mounts)
	}
}
