package node

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spknetwork/spk-agent/internal/metrics"
)

// BlockSize is the default chunk size of the node's DAG layout. A block index
// addresses the index-th chunk of the content's payload.
const BlockSize = 256 * 1024

// RepoStats is a snapshot of repository size and pin count.
type RepoStats struct {
	RepoSize uint64 `json:"repo_size"`
	NumPins  int    `json:"num_pins"`
}

// PinInfo describes one recursively pinned root. Name and Size are empty/zero
// when the underlying query does not surface them.
type PinInfo struct {
	CID  string `json:"cid"`
	Name string `json:"name"`
	Size uint64 `json:"size"`
}

// RepoStats queries the node for repository size and recursive pin count.
// This is subprocess-backed and expensive; callers should go through the
// status cache.
func (m *Manager) RepoStats() (RepoStats, error) {
	out, err := m.run("repo", "stat", "--size-only")
	if err != nil {
		return RepoStats{}, err
	}
	var size uint64
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "RepoSize") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			if v, perr := strconv.ParseUint(fields[1], 10, 64); perr == nil {
				size = v
			}
		}
		break
	}

	pins, err := m.Pins()
	if err != nil {
		return RepoStats{}, err
	}
	return RepoStats{RepoSize: size, NumPins: len(pins)}, nil
}

// Pins lists recursively pinned roots.
func (m *Manager) Pins() ([]PinInfo, error) {
	out, err := m.run("pin", "ls", "-t", "recursive")
	if err != nil {
		return nil, err
	}
	var pins []PinInfo
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		pins = append(pins, PinInfo{CID: fields[0]})
	}
	return pins, nil
}

// Pin marks the content as pinned so the node retains it across GC.
func (m *Manager) Pin(cid string) error {
	_, err := m.run("pin", "add", cid)
	metrics.IncPinOp("pin", err == nil)
	if err != nil {
		return err
	}
	slog.Info("pinned content", "cid", cid)
	return nil
}

// Unpin removes the durability marker for the content.
func (m *Manager) Unpin(cid string) error {
	_, err := m.run("pin", "rm", cid)
	metrics.IncPinOp("unpin", err == nil)
	if err != nil {
		return err
	}
	slog.Info("unpinned content", "cid", cid)
	return nil
}

// Block fetches the raw bytes of the index-th BlockSize chunk of the content.
// An empty read means the index is past the end of the payload.
func (m *Manager) Block(cid string, index uint64) ([]byte, error) {
	offset := index * BlockSize
	out, err := m.runBytes("cat", cid,
		"--offset", strconv.FormatUint(offset, 10),
		"--length", strconv.Itoa(BlockSize))
	if err != nil {
		return nil, &BlockFetchError{CID: cid, Index: index, Err: err}
	}
	if len(out) == 0 {
		return nil, &BlockFetchError{CID: cid, Index: index, Err: errors.New("block index out of range")}
	}
	return out, nil
}
