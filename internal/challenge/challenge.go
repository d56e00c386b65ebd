// Package challenge implements the proof-of-storage handshake: proving the
// node holds specific data blocks by producing a salted hash over them,
// without transmitting the blocks themselves.
package challenge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/spknetwork/spk-agent/internal/history"
	"github.com/spknetwork/spk-agent/internal/metrics"
	"github.com/spknetwork/spk-agent/internal/node"
)

// BlockSource is the slice of the node supervisor the responder depends on.
type BlockSource interface {
	IsRunning() bool
	Block(cid string, index uint64) ([]byte, error)
}

// Result carries the proof digest and the wall time spent producing it.
// Latency is populated even when the challenge fails, so a verifier can tell
// a fast rejection from a hung node.
type Result struct {
	Proof   string
	Latency time.Duration
}

// Responder answers storage-proof challenges against a supervised node.
// An optional audit sink records successful responses best-effort.
type Responder struct {
	source BlockSource
	sink   history.Sink
}

// New creates a Responder. sink may be nil.
func New(source BlockSource, sink history.Sink) *Responder {
	return &Responder{source: source, sink: sink}
}

// Respond folds the salt and the requested blocks, in the exact order given,
// into a sha256 accumulator and returns the lowercase hex digest. The proof
// is order-sensitive: callers issuing the same salt and index sequence
// against unchanged content get a byte-identical proof. Any single block
// fetch failure aborts the whole challenge; no partial proofs.
func (r *Responder) Respond(cid, salt string, indices []uint64) (Result, error) {
	start := time.Now()

	if !r.source.IsRunning() {
		metrics.IncChallenge(false)
		return Result{Latency: time.Since(start)}, node.ErrNotRunning
	}

	h := sha256.New()
	h.Write([]byte(salt))
	for _, idx := range indices {
		block, err := r.source.Block(cid, idx)
		if err != nil {
			slog.Warn("challenge block fetch failed", "cid", cid, "index", idx, "err", err)
			metrics.IncChallenge(false)
			return Result{Latency: time.Since(start)}, err
		}
		h.Write(block)
	}

	res := Result{
		Proof:   hex.EncodeToString(h.Sum(nil)),
		Latency: time.Since(start),
	}
	metrics.IncChallenge(true)
	metrics.ObserveChallengeDuration(res.Latency.Seconds())
	slog.Info("answered storage challenge",
		"cid", cid, "blocks", len(indices), "latency_ms", res.Latency.Milliseconds())

	if r.sink != nil {
		e := history.Event{
			Type:       history.EventChallenge,
			OccurredAt: time.Now(),
			CID:        cid,
			Blocks:     len(indices),
			Proof:      res.Proof,
			LatencyMS:  res.Latency.Milliseconds(),
		}
		if err := r.sink.Send(context.Background(), e); err != nil {
			slog.Warn("challenge audit record failed", "err", err)
		}
	}
	return res, nil
}
