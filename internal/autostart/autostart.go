// Package autostart registers the agent with the operating system's
// login-launch mechanism. Each platform contributes its own entry file
// format; the manager only knows how to place, remove, and detect it.
package autostart

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
)

// Manager owns one platform autostart entry for a given executable.
type Manager struct {
	path string // platform entry file
	exe  string // absolute path of the binary to launch at login
}

// New resolves the running executable and the platform entry location.
func New() (*Manager, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, err
	}
	path, err := entryPath()
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, exe: exe}, nil
}

// newAt builds a Manager with explicit paths, for tests.
func newAt(entry, exe string) *Manager {
	return &Manager{path: entry, exe: exe}
}

// Enable writes the login entry, replacing any previous one.
func (m *Manager) Enable() error {
	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return err
	}
	if err := os.WriteFile(m.path, entryContent(m.exe), 0o644); err != nil { // #nosec G306
		return err
	}
	slog.Info("autostart enabled", "entry", m.path)
	return nil
}

// Disable removes the login entry. A missing entry is not an error.
func (m *Manager) Disable() error {
	if err := os.Remove(m.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	slog.Info("autostart disabled", "entry", m.path)
	return nil
}

// Enabled reports whether the login entry currently exists.
func (m *Manager) Enabled() bool {
	_, err := os.Stat(m.path)
	return err == nil
}
