package autostart

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnableDisableCycle(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "autostart", "spk-agent.entry")
	m := newAt(entry, "/usr/local/bin/spk-agent")

	if m.Enabled() {
		t.Fatalf("enabled before any entry was written")
	}
	if err := m.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if !m.Enabled() {
		t.Fatalf("entry written but Enabled() is false")
	}
	raw, err := os.ReadFile(entry)
	if err != nil {
		t.Fatalf("read entry: %v", err)
	}
	if !strings.Contains(string(raw), "/usr/local/bin/spk-agent") {
		t.Fatalf("entry does not reference the executable:\n%s", raw)
	}
	if err := m.Disable(); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if m.Enabled() {
		t.Fatalf("still enabled after disable")
	}
}

func TestDisableMissingEntryIsNoop(t *testing.T) {
	m := newAt(filepath.Join(t.TempDir(), "absent.entry"), "/bin/true")
	if err := m.Disable(); err != nil {
		t.Fatalf("disable of missing entry: %v", err)
	}
}

func TestEnableOverwritesStaleEntry(t *testing.T) {
	entry := filepath.Join(t.TempDir(), "spk-agent.entry")
	if err := os.WriteFile(entry, []byte("old launcher"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := newAt(entry, "/opt/spk/spk-agent")
	if err := m.Enable(); err != nil {
		t.Fatalf("enable: %v", err)
	}
	raw, _ := os.ReadFile(entry)
	if strings.Contains(string(raw), "old launcher") {
		t.Fatalf("stale entry content survived enable")
	}
}
