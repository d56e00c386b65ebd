// Package agentconfig persists the agent's user-facing settings and the
// accumulated earnings ledger as one JSON document under the user's home
// directory.
package agentconfig

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spknetwork/spk-agent/internal/metrics"
)

// ErrNegativeAmount rejects earnings additions below zero.
var ErrNegativeAmount = errors.New("amount cannot be negative")

// Milestones are the cumulative-earnings breakpoints, in HBD, ascending.
// Crossing one fires a notification per breakpoint crossed.
var Milestones = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// Config is the persisted settings record. Running totals live here too;
// the document is rewritten after every mutation.
type Config struct {
	HiveUsername       string  `json:"hive_username"`
	HivePostingKeyHash string  `json:"hive_posting_key_hash"`
	AutoPin            bool    `json:"auto_pin"`
	MaxStorageGB       uint32  `json:"max_storage_gb"`
	AutoStart          bool    `json:"auto_start"`
	TotalEarnedHBD     float64 `json:"total_earned_hbd"`
	ChallengeCount     uint64  `json:"challenge_count"`
	LastChallengeAt    int64   `json:"last_challenge_at,omitempty"` // unix seconds, 0 = never
	NotifyOnChallenge  bool    `json:"notify_on_challenge"`
	NotifyOnMilestone  bool    `json:"notify_on_milestone"`
	NotifyDailySummary bool    `json:"notify_daily_summary"`
}

// Default returns the settings used when no document exists yet or the
// existing one cannot be parsed.
func Default() Config {
	return Config{
		AutoPin:            true,
		MaxStorageGB:       50,
		NotifyOnChallenge:  true,
		NotifyOnMilestone:  true,
		NotifyDailySummary: true,
	}
}

// DefaultPath is the well-known location of the agent config document.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".spk-ipfs", "agent-config.json")
	}
	return filepath.Join(home, ".spk-ipfs", "agent-config.json")
}

// Update is a partial-update request; nil fields are left unchanged.
type Update struct {
	HiveUsername       *string `json:"hive_username"`
	HivePostingKeyHash *string `json:"hive_posting_key_hash"`
	AutoPin            *bool   `json:"auto_pin"`
	MaxStorageGB       *uint32 `json:"max_storage_gb"`
	AutoStart          *bool   `json:"auto_start"`
	NotifyOnChallenge  *bool   `json:"notify_on_challenge"`
	NotifyOnMilestone  *bool   `json:"notify_on_milestone"`
	NotifyDailySummary *bool   `json:"notify_daily_summary"`
}

// AddResult reports the state after an earnings addition plus every milestone
// breakpoint the addition crossed.
type AddResult struct {
	Config  Config
	Crossed []float64
}

// Store serializes access to the config document. Mutations persist before
// returning.
type Store struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewStore creates a Store for the document at path; empty selects
// DefaultPath.
func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, now: time.Now}
}

// Load reads the document, falling back to defaults when it is missing or
// corrupt. A corrupt settings file must not prevent the agent from running:
// it is logged and replaced, never fatal.
func (s *Store) Load() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() Config {
	raw, err := os.ReadFile(s.path) // #nosec G304
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.Warn("failed to read agent config, using defaults", "path", s.path, "err", err)
		}
		cfg := Default()
		_ = s.saveLocked(cfg)
		return cfg
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		slog.Warn("failed to parse agent config, using defaults", "path", s.path, "err", err)
		cfg = Default()
		_ = s.saveLocked(cfg)
	}
	return cfg
}

// Save persists the given config wholesale.
func (s *Store) Save(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(cfg)
}

func (s *Store) saveLocked(cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return err
	}
	slog.Debug("agent config saved", "path", s.path)
	return nil
}

// Apply merges the partial update into the stored config field by field and
// persists the result.
func (s *Store) Apply(u Update) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.loadLocked()
	if u.HiveUsername != nil {
		cfg.HiveUsername = *u.HiveUsername
	}
	if u.HivePostingKeyHash != nil {
		cfg.HivePostingKeyHash = *u.HivePostingKeyHash
	}
	if u.AutoPin != nil {
		cfg.AutoPin = *u.AutoPin
	}
	if u.MaxStorageGB != nil {
		cfg.MaxStorageGB = *u.MaxStorageGB
	}
	if u.AutoStart != nil {
		cfg.AutoStart = *u.AutoStart
	}
	if u.NotifyOnChallenge != nil {
		cfg.NotifyOnChallenge = *u.NotifyOnChallenge
	}
	if u.NotifyOnMilestone != nil {
		cfg.NotifyOnMilestone = *u.NotifyOnMilestone
	}
	if u.NotifyDailySummary != nil {
		cfg.NotifyDailySummary = *u.NotifyDailySummary
	}
	if err := s.saveLocked(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetAutoStart persists only the autostart flag, used by the write-back path
// after the platform registration succeeded.
func (s *Store) SetAutoStart(enabled bool) (Config, error) {
	return s.Apply(Update{AutoStart: &enabled})
}

// AddEarnings credits amount to the running total, bumps the challenge count
// by exactly one, and records the later of timestamp (unix seconds) or now as
// the last challenge time. A negative amount fails validation and leaves the
// ledger untouched. Crossed lists one entry per milestone breakpoint passed
// between the pre- and post-update totals; a single addition jumping several
// breakpoints reports all of them.
func (s *Store) AddEarnings(amount float64, timestamp int64) (AddResult, error) {
	if amount < 0 {
		return AddResult{}, ErrNegativeAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.loadLocked()
	oldTotal := cfg.TotalEarnedHBD
	cfg.TotalEarnedHBD += amount
	cfg.ChallengeCount++

	now := s.now().Unix()
	if timestamp > now {
		cfg.LastChallengeAt = timestamp
	} else {
		cfg.LastChallengeAt = now
	}

	if err := s.saveLocked(cfg); err != nil {
		return AddResult{}, err
	}
	metrics.SetEarningsTotal(cfg.TotalEarnedHBD)
	slog.Info("earnings added",
		"amount_hbd", amount, "total_hbd", cfg.TotalEarnedHBD, "challenges", cfg.ChallengeCount)

	return AddResult{
		Config:  cfg,
		Crossed: crossedMilestones(oldTotal, cfg.TotalEarnedHBD),
	}, nil
}

// crossedMilestones returns every breakpoint in (old, new], ascending.
func crossedMilestones(oldTotal, newTotal float64) []float64 {
	var crossed []float64
	for _, m := range Milestones {
		if oldTotal < m && newTotal >= m {
			crossed = append(crossed, m)
		}
	}
	return crossed
}
