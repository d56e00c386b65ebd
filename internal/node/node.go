package node

import (
	"bufio"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spknetwork/spk-agent/internal/logger"
	"github.com/spknetwork/spk-agent/internal/metrics"
)

// Default ports and tuning for a desktop/background workload.
const (
	DefaultAPIPort     = 5001
	DefaultGatewayPort = 8080
	DefaultSwarmPort   = 4001
	DefaultStorageMax  = "50GB"
	DefaultGCWatermark = 90
	DefaultConnMgrLow  = 50
	DefaultConnMgrHigh = 100

	readyPollInterval = 250 * time.Millisecond
	readyPollAttempts = 20

	stopWait = 5 * time.Second
)

// readyMarkers are stdout substrings treated as synonymous readiness signals.
// Either listener marker means the control surface the agent depends on is up.
var readyMarkers = []string{
	"Daemon is ready",
	"API server listening",
	"Gateway server listening",
}

// Options configures a Manager. Zero values are filled in by New.
type Options struct {
	Binary      string // node binary; default "ipfs"
	RepoPath    string // repository directory; default ~/.spk-ipfs
	APIPort     int
	GatewayPort int
	SwarmPort   int
	StorageMax  string
	GCWatermark int
	ConnMgrLow  int
	ConnMgrHigh int
	Log         logger.Config // captured daemon output destinations
}

func (o Options) withDefaults() Options {
	if o.Binary == "" {
		o.Binary = "ipfs"
	}
	if o.RepoPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			o.RepoPath = filepath.Join(home, ".spk-ipfs")
		} else {
			o.RepoPath = ".spk-ipfs"
		}
	}
	if o.APIPort == 0 {
		o.APIPort = DefaultAPIPort
	}
	if o.GatewayPort == 0 {
		o.GatewayPort = DefaultGatewayPort
	}
	if o.SwarmPort == 0 {
		o.SwarmPort = DefaultSwarmPort
	}
	if o.StorageMax == "" {
		o.StorageMax = DefaultStorageMax
	}
	if o.GCWatermark == 0 {
		o.GCWatermark = DefaultGCWatermark
	}
	if o.ConnMgrLow == 0 {
		o.ConnMgrLow = DefaultConnMgrLow
	}
	if o.ConnMgrHigh == 0 {
		o.ConnMgrHigh = DefaultConnMgrHigh
	}
	return o
}

// Manager supervises a single content-addressed storage node daemon.
// At most one live child per Manager; the child never outlives its Manager.
type Manager struct {
	opts Options

	mu        sync.Mutex
	daemon    *exec.Cmd
	waitDone  chan struct{}
	startedAt time.Time
	peerID    string

	// ready is written only by the stdout watcher goroutine and cleared on
	// stop; everyone else samples it.
	ready atomic.Bool

	pollInterval time.Duration
	pollAttempts int
}

// New creates a Manager. The daemon is not spawned until StartDaemon.
func New(opts Options) *Manager {
	return &Manager{
		opts:         opts.withDefaults(),
		pollInterval: readyPollInterval,
		pollAttempts: readyPollAttempts,
	}
}

// RepoPath returns the repository directory this manager targets.
func (m *Manager) RepoPath() string { return m.opts.RepoPath }

// APIPort returns the configured node API port.
func (m *Manager) APIPort() int { return m.opts.APIPort }

// Initialize prepares the node repository. It is idempotent and cheap when
// the repository already exists: only the peer identity is read back.
func (m *Manager) Initialize() error {
	cfgPath := filepath.Join(m.opts.RepoPath, "config")
	if _, err := os.Stat(cfgPath); err == nil {
		slog.Info("node repository exists", "path", m.opts.RepoPath)
		return m.readPeerID()
	}

	slog.Info("initializing node repository", "path", m.opts.RepoPath)
	if err := os.MkdirAll(m.opts.RepoPath, 0o750); err != nil {
		return &RepoInitError{Err: err}
	}
	if _, err := m.run("init", "--profile=server"); err != nil {
		return &RepoInitError{Err: err}
	}
	if err := bootstrapConfig(cfgPath, m.opts); err != nil {
		return err
	}
	slog.Info("node repository configured",
		"storage_max", m.opts.StorageMax, "api_port", m.opts.APIPort, "gateway_port", m.opts.GatewayPort)
	return m.readPeerID()
}

// readPeerID loads Identity.PeerID from the repository config document.
// A missing key is tolerated; unreadable or malformed JSON is not.
func (m *Manager) readPeerID() error {
	cfgPath := filepath.Join(m.opts.RepoPath, "config")
	doc, err := readConfigDoc(cfgPath)
	if err != nil {
		return err
	}
	if id, ok := lookupPath(doc, "Identity", "PeerID").(string); ok {
		m.mu.Lock()
		m.peerID = id
		m.mu.Unlock()
		slog.Info("node identity", "peer_id", id)
	}
	return nil
}

// PeerID returns the identity cached during Initialize. Never triggers I/O.
func (m *Manager) PeerID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peerID
}

// StartDaemon spawns the node daemon and waits, bounded, for a readiness
// marker on its stdout. A timeout is non-fatal: the child is kept as the
// current process since a slow daemon is better than a killed healthy one.
// No-op if a child is already tracked.
func (m *Manager) StartDaemon() error {
	m.mu.Lock()
	if m.daemon != nil {
		m.mu.Unlock()
		slog.Info("node daemon already running")
		return nil
	}
	m.mu.Unlock()

	slog.Info("starting node daemon", "binary", m.opts.Binary)

	cmd := exec.Command(m.opts.Binary, "daemon", "--enable-gc") // #nosec G204
	cmd.Env = append(os.Environ(), "IPFS_PATH="+m.opts.RepoPath)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return &SpawnError{Binary: m.opts.Binary, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &SpawnError{Binary: m.opts.Binary, Err: err}
	}

	outW, errW := m.opts.Log.Writers("node")
	if err := cmd.Start(); err != nil {
		closeWriter(outW)
		closeWriter(errW)
		return &SpawnError{Binary: m.opts.Binary, Err: err}
	}

	done := make(chan struct{})
	m.mu.Lock()
	m.daemon = cmd
	m.waitDone = done
	m.startedAt = time.Now()
	m.mu.Unlock()

	go m.watchStdout(stdout, outW)
	go drain(stderr, errW)
	go m.monitor(cmd, done)

	metrics.IncDaemonStart()

	for i := 0; i < m.pollAttempts; i++ {
		if m.ready.Load() {
			break
		}
		time.Sleep(m.pollInterval)
	}
	if m.ready.Load() {
		slog.Info("node daemon ready",
			"api_port", m.opts.APIPort, "gateway_port", m.opts.GatewayPort)
	} else {
		slog.Warn("node daemon did not report ready in time; keeping process",
			"waited", time.Duration(m.pollAttempts)*m.pollInterval)
	}
	return nil
}

// watchStdout is the only writer of the readiness flag. Lines are tee'd to
// the rotating capture file when one is configured.
func (m *Manager) watchStdout(r io.Reader, w io.WriteCloser) {
	defer closeWriter(w)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if w != nil {
			_, _ = w.Write([]byte(line + "\n"))
		}
		if !m.ready.Load() && isReadyLine(line) {
			m.ready.Store(true)
		}
		slog.Debug("node stdout", "line", line)
	}
}

func isReadyLine(line string) bool {
	for _, marker := range readyMarkers {
		if strings.Contains(line, marker) {
			return true
		}
	}
	return false
}

func drain(r io.Reader, w io.WriteCloser) {
	defer closeWriter(w)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if w != nil {
			_, _ = w.Write([]byte(sc.Text() + "\n"))
		}
	}
}

func closeWriter(w io.WriteCloser) {
	if w != nil {
		_ = w.Close()
	}
}

// monitor owns cmd.Wait. It reconciles state when the child exits on its own;
// StopDaemon synchronizes with it through the done channel.
func (m *Manager) monitor(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)
	m.mu.Lock()
	crashed := m.daemon == cmd
	if crashed {
		m.daemon = nil
	}
	m.mu.Unlock()
	if crashed {
		m.ready.Store(false)
		slog.Warn("node daemon exited unexpectedly", "err", err)
	}
}

// StopDaemon terminates the tracked child and waits for it to exit. Safe to
// call repeatedly and during teardown.
func (m *Manager) StopDaemon() error {
	m.mu.Lock()
	cmd := m.daemon
	done := m.waitDone
	m.daemon = nil
	m.waitDone = nil
	m.mu.Unlock()

	if cmd == nil {
		return nil
	}

	slog.Info("stopping node daemon")
	m.ready.Store(false)
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopWait):
			slog.Warn("node daemon did not exit in time after kill")
		}
	}
	metrics.IncDaemonStop()
	slog.Info("node daemon stopped")
	return nil
}

// IsRunning reports whether a child is tracked AND the readiness flag is set.
// This is a sampled observation, not a push-based one.
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	tracked := m.daemon != nil
	m.mu.Unlock()
	return tracked && m.ready.Load()
}

// Uptime reports how long the current child has been tracked, zero when none.
func (m *Manager) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.daemon == nil {
		return 0
	}
	return time.Since(m.startedAt)
}

// Close force-terminates any still-tracked child. The daemon must never
// outlive its manager.
func (m *Manager) Close() error {
	return m.StopDaemon()
}
