// Package spkagent supervises a local content-addressed storage node and
// exposes the agent control plane for embedding.
package spkagent

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spknetwork/spk-agent/internal/agentconfig"
	"github.com/spknetwork/spk-agent/internal/autostart"
	"github.com/spknetwork/spk-agent/internal/challenge"
	cfg "github.com/spknetwork/spk-agent/internal/config"
	"github.com/spknetwork/spk-agent/internal/history"
	"github.com/spknetwork/spk-agent/internal/history/factory"
	"github.com/spknetwork/spk-agent/internal/metrics"
	"github.com/spknetwork/spk-agent/internal/node"
	"github.com/spknetwork/spk-agent/internal/notify"
	iapi "github.com/spknetwork/spk-agent/internal/server"
	"github.com/spknetwork/spk-agent/internal/statuscache"
)

// Version is reported by the status endpoint and the version command.
const Version = "0.1.0"

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.FileConfig

type NodeOptions = node.Options

type AgentConfig = agentconfig.Config

type AgentConfigUpdate = agentconfig.Update

type ChallengeResult = challenge.Result

type HistorySink = history.Sink

type Notifier = notify.Notifier

// LoadConfig reads the agent's TOML configuration; empty path yields
// defaults.
func LoadConfig(path string) (Config, error) { return cfg.Load(path) }

// Agent bundles the node supervisor with the settings store, status cache,
// challenge responder and optional audit sink.
type Agent struct {
	fc        Config
	node      *node.Manager
	stats     *statuscache.Cache
	store     *agentconfig.Store
	responder *challenge.Responder
	auto      *autostart.Manager
	sink      history.Sink
	notifier  notify.Notifier
}

// New assembles an Agent from the given configuration. The node daemon is
// not spawned until StartDaemon.
func New(fc Config) (*Agent, error) {
	mgr := node.New(fc.NodeOptions())

	var sink history.Sink
	if fc.History.DSN != "" {
		s, err := factory.NewSinkFromDSN(fc.History.DSN)
		if err != nil {
			return nil, err
		}
		sink = s
	}

	auto, err := autostart.New()
	if err != nil {
		return nil, err
	}

	a := &Agent{
		fc:        fc,
		node:      mgr,
		store:     agentconfig.NewStore(fc.AgentConfigPath),
		responder: challenge.New(mgr, sink),
		auto:      auto,
		sink:      sink,
		notifier:  notify.NewLogNotifier(nil),
	}
	a.stats = statuscache.New(time.Duration(fc.StatusTTLSecs)*time.Second, mgr.RepoStats)
	return a, nil
}

// SetNotifier replaces the default log-backed notifier.
func (a *Agent) SetNotifier(n Notifier) {
	if n != nil {
		a.notifier = n
	}
}

// Initialize prepares the node repository, creating and configuring it on
// first run.
func (a *Agent) Initialize() error { return a.node.Initialize() }

// StartDaemon spawns the node daemon and waits for readiness.
func (a *Agent) StartDaemon() error { return a.node.StartDaemon() }

// StopDaemon terminates the node daemon if one is tracked.
func (a *Agent) StopDaemon() error { return a.node.StopDaemon() }

// IsRunning reports whether a tracked daemon has signaled readiness.
func (a *Agent) IsRunning() bool { return a.node.IsRunning() }

// PeerID returns the node identity, empty until the repository exists.
func (a *Agent) PeerID() string { return a.node.PeerID() }

// Settings returns the persisted agent configuration.
func (a *Agent) Settings() AgentConfig { return a.store.Load() }

// Respond answers a storage-proof challenge against the supervised node.
func (a *Agent) Respond(cid, salt string, indices []uint64) (ChallengeResult, error) {
	return a.responder.Respond(cid, salt, indices)
}

// Close stops the daemon and releases the audit sink.
func (a *Agent) Close() error {
	err := a.node.Close()
	if a.sink != nil {
		if cerr := a.sink.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NewHTTPServer starts the control-plane HTTP server for this agent.
func (a *Agent) NewHTTPServer(addr, basePath string) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, iapi.Deps{
		Version:    Version,
		Node:       a.node,
		Stats:      a.stats,
		Store:      a.store,
		Challenger: a.responder,
		Autostart:  a.auto,
		Notifier:   a.notifier,
		Sink:       a.sink,
	})
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It blocks in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
