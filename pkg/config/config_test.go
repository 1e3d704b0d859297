package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/parrika/httpcore/pkg/config"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "httpcore.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  - listen: ["0.0.0.0:8080"]
    server_name:
      - kind: exact
        value: example.com
`)
	tree, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(tree.Servers))
	}
	s := tree.Servers[0]
	if s.ClientHeaderBufferSize != 1024 {
		t.Fatalf("expected default buffer size 1024, got %d", s.ClientHeaderBufferSize)
	}
	if s.LargeHeaderBuffers != 4 || s.LargeHeaderBufferSize != 8192 {
		t.Fatalf("expected default large-buffer pool 4x8192, got %dx%d", s.LargeHeaderBuffers, s.LargeHeaderBufferSize)
	}
}

func TestLoadRejectsEmptyListen(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  - server_name:
      - kind: exact
        value: example.com
`)
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected error for missing listen address")
	}
}

func TestLoadRejectsTLSWithoutCertPair(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  - listen: ["0.0.0.0:8443"]
    tls: true
`)
	if _, err := config.Load(path); err == nil {
		t.Fatalf("expected error for tls without cert/key files")
	}
}

func TestLoadParsesDurations(t *testing.T) {
	path := writeTempConfig(t, `
servers:
  - listen: ["0.0.0.0:8080"]
    keepalive_timeout: 75s
    send_timeout: 10s
`)
	tree, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Servers[0].KeepaliveTimeout == 0 {
		t.Fatalf("expected keepalive_timeout to be parsed")
	}
}

func TestDefaultServerPrefersMarkedDefault(t *testing.T) {
	servers := []config.Server{
		{Listen: []string{"0.0.0.0:8080"}},
		{Listen: []string{"0.0.0.0:8080"}, Default: true},
	}
	got := config.DefaultServer(servers, "0.0.0.0:8080")
	if got == nil || !got.Default {
		t.Fatalf("expected the explicitly marked default server")
	}
}

func TestDefaultServerFallsBackToFirst(t *testing.T) {
	servers := []config.Server{
		{Listen: []string{"0.0.0.0:8080"}},
		{Listen: []string{"0.0.0.0:8080"}},
	}
	got := config.DefaultServer(servers, "0.0.0.0:8080")
	if got != &servers[0] {
		t.Fatalf("expected the first server bound to the address")
	}
}
