package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spknetwork/spk-agent/internal/history"
)

func TestNewRejectsEmptyDSN(t *testing.T) {
	if _, err := New("  "); err == nil {
		t.Fatalf("expected error for empty DSN")
	}
}

func TestSendAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := New("sqlite://" + path)
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	defer func() { _ = s.Close() }()

	e := history.Event{
		Type:       history.EventChallenge,
		OccurredAt: time.Now(),
		CID:        "bafytestcid",
		Blocks:     3,
		Proof:      "deadbeef",
		LatencyMS:  42,
	}
	if err := s.Send(context.Background(), e); err != nil {
		t.Fatalf("send: %v", err)
	}

	var cid string
	var latency int64
	row := s.db.QueryRow(`SELECT cid, latency_ms FROM agent_events WHERE type = ?`, string(history.EventChallenge))
	if err := row.Scan(&cid, &latency); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if cid != "bafytestcid" || latency != 42 {
		t.Fatalf("unexpected row: cid=%q latency=%d", cid, latency)
	}
}

func TestPlainPathDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("open sink with plain path: %v", err)
	}
	defer func() { _ = s.Close() }()
	if err := s.Send(context.Background(), history.Event{Type: history.EventPin, OccurredAt: time.Now(), CID: "bafyx"}); err != nil {
		t.Fatalf("send: %v", err)
	}
}
