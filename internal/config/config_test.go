package config

import (
	"os"
	"path/filepath"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestResolveDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, set, found, err := Resolve(Raw{RootDir: strPtr(dir)}, Raw{}, nil)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if found {
		t.Fatalf("expected no kubernix.toml to be found in a fresh dir")
	}
	if cfg.Nodes != 1 {
		t.Errorf("expected default Nodes=1, got %d", cfg.Nodes)
	}
	if cfg.Runtime != "podman" {
		t.Errorf("expected default Runtime=podman, got %q", cfg.Runtime)
	}
	if cfg.CIDR.String() != "10.10.0.0/16" {
		t.Errorf("expected default cidr 10.10.0.0/16, got %s", cfg.CIDR.String())
	}
	if set.Nodes || set.Runtime || set.CIDR {
		t.Errorf("defaults should not be marked explicit: %+v", set)
	}
}

func TestResolvePrecedenceCLIOverEnvOverFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "kubernix.toml"), []byte(`nodes = 2
runtime = "docker"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, set, found, err := Resolve(
		Raw{RootDir: strPtr(dir), Nodes: intPtr(4)},
		Raw{Nodes: intPtr(3), Runtime: strPtr("crio-runtime")},
		nil,
	)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if !found {
		t.Fatalf("expected kubernix.toml to be found")
	}
	if cfg.Nodes != 4 {
		t.Errorf("expected CLI nodes=4 to win, got %d", cfg.Nodes)
	}
	if cfg.Runtime != "crio-runtime" {
		t.Errorf("expected env runtime to win over file, got %q", cfg.Runtime)
	}
	if !set.Nodes || !set.Runtime {
		t.Errorf("expected Nodes and Runtime to be marked explicit")
	}
}

func TestResolveRejectsBadCIDR(t *testing.T) {
	dir := t.TempDir()
	_, _, _, err := Resolve(Raw{RootDir: strPtr(dir), CIDR: strPtr("not-a-cidr")}, Raw{}, nil)
	if err == nil {
		t.Fatal("expected an error for an invalid CIDR")
	}
}

func TestResolveRejectsZeroNodes(t *testing.T) {
	dir := t.TempDir()
	zero := 0
	_, _, _, err := Resolve(Raw{RootDir: strPtr(dir), Nodes: &zero}, Raw{}, nil)
	if err == nil {
		t.Fatal("expected an error for nodes < 1")
	}
}

func TestSaveOnlyPersistsExplicitFields(t *testing.T) {
	dir := t.TempDir()
	cfg, set, _, err := Resolve(Raw{RootDir: strPtr(dir), Nodes: intPtr(3)}, Raw{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := cfg.Save(set); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "kubernix.toml"))
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !contains(content, "nodes = 3") {
		t.Errorf("expected persisted nodes=3, got: %s", content)
	}
	if contains(content, "runtime") {
		t.Errorf("runtime was never explicitly set and should be absent, got: %s", content)
	}
}

func TestEnvRawReadsKubernixPrefixedVars(t *testing.T) {
	r := EnvRaw([]string{
		"KUBERNIX_NODES=5",
		"KUBERNIX_RUNTIME=docker",
		"UNRELATED=ignored",
	})
	if r.Nodes == nil || *r.Nodes != 5 {
		t.Errorf("expected Nodes=5, got %v", r.Nodes)
	}
	if r.Runtime == nil || *r.Runtime != "docker" {
		t.Errorf("expected Runtime=docker, got %v", r.Runtime)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
