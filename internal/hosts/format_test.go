package hosts

import (
	"strings"
	"testing"
)

func mounted(b bool) *bool { return &b }

func TestFormatTable_Empty(t *testing.T) {
	got := FormatTable(Report{})
	if got != "No hosts configured.\n" {
		t.Errorf("FormatTable() = %q", got)
	}
}

func TestFormatTable_SortsByFreeCores(t *testing.T) {
	report := Report{Hosts: []HostStatus{
		{Name: "busy", Status: "online", Metrics: &HostMetrics{Cores: 8, FreeCores: 1, LoadAvg1: 7.2}},
		{Name: "dead", Status: "offline", Error: "timeout"},
		{Name: "idle", Status: "online", Metrics: &HostMetrics{Cores: 8, FreeCores: 8}},
	}}

	out := FormatTable(report)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("line count = %d, want 5 (header + rule + 3 rows)", len(lines))
	}
	// idle first, dead last
	if !strings.HasPrefix(lines[2], "idle") {
		t.Errorf("first row = %q, want idle", lines[2])
	}
	if !strings.HasPrefix(lines[4], "dead") {
		t.Errorf("last row = %q, want dead", lines[4])
	}
}

func TestFormatTable_CorpusColumn(t *testing.T) {
	report := Report{Hosts: []HostStatus{
		{Name: "ok", Status: "online", Metrics: &HostMetrics{Cores: 4, FreeCores: 4, CorpusMounted: mounted(true)}},
		{Name: "bad", Status: "online", Metrics: &HostMetrics{Cores: 4, FreeCores: 4, CorpusMounted: mounted(false)}},
	}}

	out := FormatTable(report)
	if !strings.Contains(out, "mounted") {
		t.Error("output missing 'mounted'")
	}
	if !strings.Contains(out, "MISSING") {
		t.Error("output missing 'MISSING'")
	}
}

func TestFormatTable_OfflineRowIsBlank(t *testing.T) {
	report := Report{Hosts: []HostStatus{
		{Name: "dead", Status: "offline", Error: "refused"},
	}}
	out := FormatTable(report)
	if strings.Contains(out, "%") {
		t.Errorf("offline row has metric cells: %q", out)
	}
}
