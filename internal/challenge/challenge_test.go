package challenge

import (
	"errors"
	"testing"

	"github.com/spknetwork/spk-agent/internal/node"
)

type fakeSource struct {
	running bool
	blocks  map[uint64][]byte
}

func (f *fakeSource) IsRunning() bool { return f.running }

func (f *fakeSource) Block(cid string, index uint64) ([]byte, error) {
	b, ok := f.blocks[index]
	if !ok {
		return nil, &node.BlockFetchError{CID: cid, Index: index, Err: errors.New("block index out of range")}
	}
	return b, nil
}

func testSource() *fakeSource {
	return &fakeSource{
		running: true,
		blocks: map[uint64][]byte{
			0: []byte("alpha"),
			1: []byte("beta"),
			2: []byte("gamma"),
		},
	}
}

func TestRespondDeterministic(t *testing.T) {
	r := New(testSource(), nil)

	a, err := r.Respond("bafyX", "salt-1", []uint64{0, 1, 2})
	if err != nil {
		t.Fatalf("first respond: %v", err)
	}
	b, err := r.Respond("bafyX", "salt-1", []uint64{0, 1, 2})
	if err != nil {
		t.Fatalf("second respond: %v", err)
	}
	if a.Proof == "" || a.Proof != b.Proof {
		t.Fatalf("proofs differ for identical input: %q vs %q", a.Proof, b.Proof)
	}
	if len(a.Proof) != 64 {
		t.Fatalf("proof is not a sha256 hex digest: %q", a.Proof)
	}
}

func TestRespondOrderSensitive(t *testing.T) {
	r := New(testSource(), nil)

	fwd, err := r.Respond("bafyX", "salt", []uint64{0, 1})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	rev, err := r.Respond("bafyX", "salt", []uint64{1, 0})
	if err != nil {
		t.Fatalf("reversed: %v", err)
	}
	if fwd.Proof == rev.Proof {
		t.Fatalf("reordered indices produced an identical proof")
	}
}

func TestRespondSaltSensitive(t *testing.T) {
	r := New(testSource(), nil)
	a, _ := r.Respond("bafyX", "salt-a", []uint64{0})
	b, _ := r.Respond("bafyX", "salt-b", []uint64{0})
	if a.Proof == b.Proof {
		t.Fatalf("different salts produced an identical proof")
	}
}

func TestRespondRepeatedAndEmptyIndices(t *testing.T) {
	r := New(testSource(), nil)
	// Repeats are legal and affect the digest.
	single, err := r.Respond("bafyX", "s", []uint64{0})
	if err != nil {
		t.Fatalf("single: %v", err)
	}
	double, err := r.Respond("bafyX", "s", []uint64{0, 0})
	if err != nil {
		t.Fatalf("double: %v", err)
	}
	if single.Proof == double.Proof {
		t.Fatalf("repeated index did not change the proof")
	}
	// Empty index list hashes the salt alone.
	empty, err := r.Respond("bafyX", "s", nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if empty.Proof == "" {
		t.Fatalf("empty challenge produced no proof")
	}
}

func TestRespondNotRunning(t *testing.T) {
	r := New(&fakeSource{running: false}, nil)
	res, err := r.Respond("bafyX", "s", []uint64{0})
	if !errors.Is(err, node.ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
	if res.Proof != "" {
		t.Fatalf("proof returned despite daemon down")
	}
	if res.Latency < 0 {
		t.Fatalf("latency not measured")
	}
}

func TestRespondBlockFailureAborts(t *testing.T) {
	r := New(testSource(), nil)
	res, err := r.Respond("bafyX", "s", []uint64{0, 99, 1})
	var bfe *node.BlockFetchError
	if !errors.As(err, &bfe) {
		t.Fatalf("expected BlockFetchError, got %v", err)
	}
	if bfe.Index != 99 {
		t.Fatalf("error names index %d, want 99", bfe.Index)
	}
	if res.Proof != "" {
		t.Fatalf("partial proof returned: %q", res.Proof)
	}
}
