package node

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"strings"
)

// run executes a node binary subcommand against the manager's repository and
// returns captured stdout. Non-zero exit yields a SubprocessError carrying
// stderr; a binary that cannot be executed yields a SpawnError.
func (m *Manager) run(args ...string) (string, error) {
	out, err := m.runBytes(args...)
	return string(out), err
}

func (m *Manager) runBytes(args ...string) ([]byte, error) {
	cmd := exec.Command(m.opts.Binary, args...) // #nosec G204
	cmd.Env = append(os.Environ(), "IPFS_PATH="+m.opts.RepoPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			return nil, &SubprocessError{
				Args:   args,
				Stderr: strings.TrimSpace(stderr.String()),
				Err:    err,
			}
		}
		return nil, &SpawnError{Binary: m.opts.Binary, Err: err}
	}
	return stdout.Bytes(), nil
}
