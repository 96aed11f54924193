package rundescriptor

import (
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	argv := []string{"/usr/local/bin/etcd", "--name", "kubernix"}
	env := map[string]string{"FOO": "bar"}

	if err := Write(path, argv, env); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	d, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if d.Command != argv[0] {
		t.Errorf("expected command %q, got %q", argv[0], d.Command)
	}
	if len(d.Args) != 2 || d.Args[0] != "--name" || d.Args[1] != "kubernix" {
		t.Errorf("unexpected args: %v", d.Args)
	}
	if d.Env["FOO"] != "bar" {
		t.Errorf("expected env FOO=bar, got %v", d.Env)
	}
}

func TestWriteRejectsEmptyArgv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yml")
	if err := Write(path, nil, nil); err == nil {
		t.Fatal("expected an error for empty argv")
	}
}
