package logger

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWritersFromDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir}
	outW, errW := cfg.Writers("kubo")
	if outW == nil || errW == nil {
		t.Fatalf("expected both writers when Dir is set")
	}
	if _, err := outW.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	_ = outW.Close()
	_ = errW.Close()
	b, err := os.ReadFile(filepath.Join(dir, "kubo.stdout.log"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(b) != "hello\n" {
		t.Fatalf("unexpected content %q", b)
	}
}

func TestWritersExplicitPathsOverrideDir(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, StdoutPath: filepath.Join(dir, "out.log")}
	outW, errW := cfg.Writers("kubo")
	_, _ = outW.Write([]byte("x"))
	_ = outW.Close()
	_ = errW.Close()
	if _, err := os.Stat(filepath.Join(dir, "out.log")); err != nil {
		t.Fatalf("explicit stdout path not used: %v", err)
	}
}

func TestWritersNilWhenUnconfigured(t *testing.T) {
	outW, errW := Config{}.Writers("kubo")
	if outW != nil || errW != nil {
		t.Fatalf("expected nil writers without destinations")
	}
}
