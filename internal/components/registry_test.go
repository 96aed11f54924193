package components

import "testing"

func byName(adapters []Adapter) map[string]Adapter {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name] = a
	}
	return m
}

func TestAllBuildsExpectedDependencyGraph(t *testing.T) {
	adapters := All(2, "")
	m := byName(adapters)

	want := []string{"etcd", "apiserver", "controller-manager", "scheduler",
		"crio-0", "kubelet-0", "proxy-0", "crio-1", "kubelet-1", "proxy-1", "coredns"}
	for _, name := range want {
		if _, ok := m[name]; !ok {
			t.Errorf("expected adapter %q in registry", name)
		}
	}

	if len(m["etcd"].Dependencies) != 0 {
		t.Errorf("etcd should have no dependencies")
	}
	if !contains(m["apiserver"].Dependencies, "etcd") {
		t.Errorf("apiserver should depend on etcd")
	}
	if !contains(m["controller-manager"].Dependencies, "apiserver") {
		t.Errorf("controller-manager should depend on apiserver")
	}
	if !contains(m["crio-0"].Dependencies, "apiserver") {
		t.Errorf("crio-0 should depend on apiserver")
	}
	if !contains(m["kubelet-0"].Dependencies, "crio-0") {
		t.Errorf("kubelet-0 should depend on crio-0")
	}
	if !contains(m["proxy-0"].Dependencies, "kubelet-0") {
		t.Errorf("proxy-0 should depend on kubelet-0")
	}
	if !contains(m["coredns"].Dependencies, "kubelet-0") || !contains(m["coredns"].Dependencies, "kubelet-1") {
		t.Errorf("coredns should depend on every kubelet, got %v", m["coredns"].Dependencies)
	}
	if m["coredns"].BuildArgv != nil {
		t.Errorf("coredns should be an apply-only adapter with nil BuildArgv")
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
