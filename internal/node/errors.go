package node

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotRunning is returned by operations that require a live, ready daemon.
var ErrNotRunning = errors.New("node daemon is not running")

// SpawnError indicates the node binary could not be executed at all.
type SpawnError struct {
	Binary string
	Err    error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to execute node binary %q: %v", e.Binary, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RepoInitError indicates repository directory creation or the init
// subcommand failed.
type RepoInitError struct {
	Err error
}

func (e *RepoInitError) Error() string {
	return fmt.Sprintf("repository initialization failed: %v", e.Err)
}

func (e *RepoInitError) Unwrap() error { return e.Err }

// ConfigParseError indicates the node's repository config document could not
// be read or parsed.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string {
	return fmt.Sprintf("failed to parse node config %s: %v", e.Path, e.Err)
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

// SubprocessError carries the captured stderr of a non-zero-exit invocation
// of the node binary.
type SubprocessError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *SubprocessError) Error() string {
	msg := fmt.Sprintf("node command %q failed: %v", strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *SubprocessError) Unwrap() error { return e.Err }

// BlockFetchError names the content identifier and block index that could not
// be retrieved from the node.
type BlockFetchError struct {
	CID   string
	Index uint64
	Err   error
}

func (e *BlockFetchError) Error() string {
	return fmt.Sprintf("failed to fetch block %d of %s: %v", e.Index, e.CID, e.Err)
}

func (e *BlockFetchError) Unwrap() error { return e.Err }
