package agentconfig

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "agent-config.json"))
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := newTestStore(t)
	cfg := s.Load()
	want := Default()
	if cfg != want {
		t.Fatalf("defaults mismatch: got %+v want %+v", cfg, want)
	}
	// The defaults are persisted so the document exists afterwards.
	if _, err := os.Stat(s.path); err != nil {
		t.Fatalf("document not created on first load: %v", err)
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	s := newTestStore(t)
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(s.path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := s.Load()
	if !cfg.AutoPin || cfg.MaxStorageGB != 50 {
		t.Fatalf("corrupt file did not fall back to defaults: %+v", cfg)
	}
}

func TestApplyPartialUpdate(t *testing.T) {
	s := newTestStore(t)
	name := "alice"
	off := false
	cfg, err := s.Apply(Update{HiveUsername: &name, AutoPin: &off})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.HiveUsername != "alice" || cfg.AutoPin {
		t.Fatalf("update not applied: %+v", cfg)
	}
	// Untouched fields keep their previous values.
	if cfg.MaxStorageGB != 50 || !cfg.NotifyOnMilestone {
		t.Fatalf("unrelated fields changed: %+v", cfg)
	}

	// Setting the username to the empty string clears it.
	empty := ""
	cfg, err = s.Apply(Update{HiveUsername: &empty})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cfg.HiveUsername != "" {
		t.Fatalf("username not cleared: %q", cfg.HiveUsername)
	}
}

func TestApplyPersistsAcrossStores(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "agent-config.json")
	s := NewStore(path)
	max := uint32(200)
	if _, err := s.Apply(Update{MaxStorageGB: &max}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	reloaded := NewStore(path).Load()
	if reloaded.MaxStorageGB != 200 {
		t.Fatalf("update not persisted: %+v", reloaded)
	}
}

func TestAddEarningsAccumulates(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	res, err := s.AddEarnings(0.125, 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Config.TotalEarnedHBD != 0.125 || res.Config.ChallengeCount != 1 {
		t.Fatalf("ledger state: %+v", res.Config)
	}
	if res.Config.LastChallengeAt != fixed.Unix() {
		t.Fatalf("last challenge at %d, want %d", res.Config.LastChallengeAt, fixed.Unix())
	}
	if len(res.Crossed) != 0 {
		t.Fatalf("unexpected milestones crossed: %v", res.Crossed)
	}

	res, err = s.AddEarnings(0.5, 0)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Config.TotalEarnedHBD != 0.625 || res.Config.ChallengeCount != 2 {
		t.Fatalf("ledger state after second add: %+v", res.Config)
	}
}

func TestAddEarningsFutureTimestampWins(t *testing.T) {
	s := newTestStore(t)
	fixed := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return fixed }

	future := fixed.Unix() + 3600
	res, err := s.AddEarnings(0.1, future)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Config.LastChallengeAt != future {
		t.Fatalf("last challenge at %d, want %d", res.Config.LastChallengeAt, future)
	}
}

func TestAddEarningsRejectsNegative(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddEarnings(1.0, 0); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := s.AddEarnings(-0.5, 0)
	if !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
	cfg := s.Load()
	if cfg.TotalEarnedHBD != 1.0 || cfg.ChallengeCount != 1 {
		t.Fatalf("ledger mutated by rejected add: %+v", cfg)
	}
}

func TestAddEarningsCrossesSingleMilestone(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.AddEarnings(0.9, 0); err != nil {
		t.Fatal(err)
	}
	res, err := s.AddEarnings(0.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Crossed) != 1 || res.Crossed[0] != 1 {
		t.Fatalf("crossed = %v, want [1]", res.Crossed)
	}
	// Crossing is reported once; staying above the breakpoint is silent.
	res, err = s.AddEarnings(0.2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Crossed) != 0 {
		t.Fatalf("milestone re-reported: %v", res.Crossed)
	}
}

func TestAddEarningsCrossesMultipleMilestones(t *testing.T) {
	s := newTestStore(t)
	res, err := s.AddEarnings(30, 0)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 5, 10, 25}
	if len(res.Crossed) != len(want) {
		t.Fatalf("crossed = %v, want %v", res.Crossed, want)
	}
	for i, m := range want {
		if res.Crossed[i] != m {
			t.Fatalf("crossed = %v, want %v", res.Crossed, want)
		}
	}
}

func TestSetAutoStart(t *testing.T) {
	s := newTestStore(t)
	cfg, err := s.SetAutoStart(true)
	if err != nil {
		t.Fatalf("set: %v", err)
	}
	if !cfg.AutoStart {
		t.Fatalf("flag not set: %+v", cfg)
	}
	if !s.Load().AutoStart {
		t.Fatalf("flag not persisted")
	}
}
