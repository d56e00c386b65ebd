package server

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spknetwork/spk-agent/internal/agentconfig"
	"github.com/spknetwork/spk-agent/internal/challenge"
	"github.com/spknetwork/spk-agent/internal/node"
	"github.com/spknetwork/spk-agent/internal/statuscache"
)

// supervisorScript is a stand-in node binary with just enough behavior for a
// full init/start/pin round trip through the HTTP surface.
const supervisorScript = `#!/bin/sh
case "$1" in
  init)
    cat > "$IPFS_PATH/config" <<'EOF'
{"Identity": {"PeerID": "12D3KooWEndToEnd"}}
EOF
    ;;
  repo)
    echo "RepoSize 2048"
    ;;
  pin)
    case "$2" in
      ls) cat "$IPFS_PATH/pinned" 2>/dev/null ;;
      add) echo "$3 recursive" >> "$IPFS_PATH/pinned" ;;
    esac
    ;;
  daemon)
    echo "Daemon is ready"
    sleep 30
    ;;
esac
`

func TestPinRoundTripAgainstSupervisedNode(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires a POSIX shell")
	}

	bin := filepath.Join(t.TempDir(), "fakenode")
	if err := os.WriteFile(bin, []byte(supervisorScript), 0o755); err != nil { // #nosec G306
		t.Fatal(err)
	}
	mgr := node.New(node.Options{Binary: bin, RepoPath: t.TempDir()})
	t.Cleanup(func() { _ = mgr.Close() })

	if err := mgr.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if mgr.PeerID() != "12D3KooWEndToEnd" {
		t.Fatalf("peer id = %q", mgr.PeerID())
	}
	if err := mgr.StartDaemon(); err != nil {
		t.Fatalf("start daemon: %v", err)
	}
	if !mgr.IsRunning() {
		t.Fatalf("daemon not ready within poll budget")
	}

	env := &testEnv{
		store: agentconfig.NewStore(filepath.Join(t.TempDir(), "agent-config.json")),
	}
	env.handler = NewRouter(Deps{
		Version:    "0.0.0-test",
		Node:       mgr,
		Stats:      statuscache.New(time.Second, mgr.RepoStats),
		Store:      env.store,
		Challenger: challenge.New(mgr, nil),
		Autostart:  &fakeAutostart{},
	}, "/api").Handler()

	w := env.do(t, http.MethodGet, "/api/status", nil)
	st := decode[statusResp](t, w)
	if !st.Running || st.PeerID == nil || *st.PeerID != "12D3KooWEndToEnd" {
		t.Fatalf("status: %+v", st)
	}
	if st.IPFSRepoSize != 2048 {
		t.Fatalf("repo size not surfaced: %+v", st)
	}

	w = env.do(t, http.MethodPost, "/api/pin", map[string]string{"cid": "bafyE2E"})
	if w.Code != http.StatusOK {
		t.Fatalf("pin code %d: %s", w.Code, w.Body.String())
	}

	w = env.do(t, http.MethodGet, "/api/pins", nil)
	pins := decode[[]node.PinInfo](t, w)
	if len(pins) != 1 || pins[0].CID != "bafyE2E" {
		t.Fatalf("pins after pin: %+v", pins)
	}

	// The pin invalidated the snapshot; the refreshed count reflects it.
	w = env.do(t, http.MethodGet, "/api/status", nil)
	st = decode[statusResp](t, w)
	if st.NumPinnedFiles != 1 {
		t.Fatalf("pin count not refreshed: %+v", st)
	}
}
