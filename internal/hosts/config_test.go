package hosts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hosts.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `
hosts:
  - name: crunch01
    corpus_path: /data/corpus
  - pattern: node{01..03}
ssh:
  connect_timeout: 5
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(cfg.Hosts) != 2 {
		t.Errorf("len(Hosts) = %d, want 2", len(cfg.Hosts))
	}
	if cfg.SSH.ConnectTimeout != 5 {
		t.Errorf("ConnectTimeout = %d, want 5", cfg.SSH.ConnectTimeout)
	}
}

func TestLoadConfig_DefaultTimeout(t *testing.T) {
	path := writeConfig(t, "hosts:\n  - name: crunch01\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.SSH.ConnectTimeout != 10 {
		t.Errorf("ConnectTimeout = %d, want default 10", cfg.SSH.ConnectTimeout)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"empty hosts", "hosts: []\n", "at least one host"},
		{"neither name nor pattern", "hosts:\n  - corpus_path: /x\n", "either 'name' or 'pattern'"},
		{"both name and pattern", "hosts:\n  - name: a\n    pattern: b{1..2}\n", "only one of"},
		{"bad pattern", "hosts:\n  - pattern: node{a..b}\n", "invalid pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("LoadConfig() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("LoadConfig() with missing file succeeded, want error")
	}
}

func TestExpandHosts(t *testing.T) {
	cfg := &HostsConfig{Hosts: []HostEntry{
		{Name: "solo", CorpusPath: "/data"},
		{Pattern: "node{08..11}", CorpusPath: "/mnt/corpus"},
	}}

	got, err := ExpandHosts(cfg)
	if err != nil {
		t.Fatalf("ExpandHosts() error = %v", err)
	}

	want := []Host{
		{Name: "solo", CorpusPath: "/data"},
		{Name: "node08", CorpusPath: "/mnt/corpus"},
		{Name: "node09", CorpusPath: "/mnt/corpus"},
		{Name: "node10", CorpusPath: "/mnt/corpus"},
		{Name: "node11", CorpusPath: "/mnt/corpus"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("host %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExpandPattern_Padding(t *testing.T) {
	names, err := expandPattern("n{1..3}")
	if err != nil {
		t.Fatalf("expandPattern() error = %v", err)
	}
	if names[0] != "n1" || names[2] != "n3" {
		t.Errorf("names = %v, want unpadded n1..n3", names)
	}

	names, err = expandPattern("n{001..002}")
	if err != nil {
		t.Fatalf("expandPattern() error = %v", err)
	}
	if names[0] != "n001" || names[1] != "n002" {
		t.Errorf("names = %v, want three-digit padding", names)
	}
}

func TestExpandPattern_StartAfterEnd(t *testing.T) {
	if _, err := expandPattern("n{05..02}"); err == nil {
		t.Error("expandPattern() with start > end succeeded, want error")
	}
}
