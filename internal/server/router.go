// Package server exposes the agent's local control plane over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spknetwork/spk-agent/internal/agentconfig"
	"github.com/spknetwork/spk-agent/internal/challenge"
	"github.com/spknetwork/spk-agent/internal/history"
	"github.com/spknetwork/spk-agent/internal/node"
	"github.com/spknetwork/spk-agent/internal/notify"
	"github.com/spknetwork/spk-agent/internal/statuscache"
)

// Node is the slice of the daemon supervisor the router needs.
type Node interface {
	IsRunning() bool
	PeerID() string
	Uptime() time.Duration
	Pin(cid string) error
	Unpin(cid string) error
	Pins() ([]node.PinInfo, error)
}

// Challenger answers storage-proof challenges.
type Challenger interface {
	Respond(cid, salt string, indices []uint64) (challenge.Result, error)
}

// Autostarter manages the platform login entry.
type Autostarter interface {
	Enable() error
	Disable() error
	Enabled() bool
}

// Deps wires the router to the rest of the agent. Notifier and Sink may be
// nil.
type Deps struct {
	Version    string
	Node       Node
	Stats      *statuscache.Cache
	Store      *agentconfig.Store
	Challenger Challenger
	Autostart  Autostarter
	Notifier   notify.Notifier
	Sink       history.Sink
}

// Router provides embeddable HTTP handlers for the agent control plane.
// Endpoints (all under basePath):
//
//	GET  /status
//	GET  /config             POST /config
//	POST /pin                POST /unpin          GET /pins
//	GET  /earnings           POST /earnings/add
//	POST /challenge
//	GET  /autostart/status   POST /autostart/enable|disable
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	deps     Deps
	basePath string
}

// NewRouter constructs a Router with a configurable basePath.
func NewRouter(deps Deps, basePath string) *Router {
	if deps.Notifier == nil {
		deps.Notifier = notify.Discard{}
	}
	return &Router{deps: deps, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery(), corsMiddleware())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/config", r.handleGetConfig)
	group.POST("/config", r.handleUpdateConfig)
	group.POST("/pin", r.handlePin)
	group.POST("/unpin", r.handleUnpin)
	group.GET("/pins", r.handlePins)
	group.GET("/earnings", r.handleEarnings)
	group.POST("/earnings/add", r.handleAddEarnings)
	group.POST("/challenge", r.handleChallenge)
	group.GET("/autostart/status", r.handleAutostartStatus)
	group.POST("/autostart/enable", r.handleAutostartEnable)
	group.POST("/autostart/disable", r.handleAutostartDisable)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr, basePath string, deps Deps) (*http.Server, error) {
	r := NewRouter(deps, basePath)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type okResp struct {
	Success bool `json:"success"`
}

type statusResp struct {
	Running        bool    `json:"running"`
	Version        string  `json:"version"`
	PeerID         *string `json:"peer_id"`
	HiveUsername   *string `json:"hive_username"`
	IPFSRepoSize   uint64  `json:"ipfs_repo_size"`
	NumPinnedFiles int     `json:"num_pinned_files"`
	TotalEarned    string  `json:"total_earned"`
	UptimeSecs     int64   `json:"uptime"`
}

func (r *Router) handleStatus(c *gin.Context) {
	cfg := r.deps.Store.Load()
	resp := statusResp{
		Running:     r.deps.Node.IsRunning(),
		Version:     r.deps.Version,
		TotalEarned: formatHBD(cfg.TotalEarnedHBD),
		UptimeSecs:  int64(r.deps.Node.Uptime().Seconds()),
	}
	if id := r.deps.Node.PeerID(); id != "" {
		resp.PeerID = &id
	}
	if cfg.HiveUsername != "" {
		resp.HiveUsername = &cfg.HiveUsername
	}
	// Stats are best-effort: a down daemon must not break the status surface.
	if stats, err := r.deps.Stats.Get(); err == nil {
		resp.IPFSRepoSize = stats.RepoSize
		resp.NumPinnedFiles = stats.NumPins
	}
	writeJSON(c, http.StatusOK, resp)
}

// configResp is the externally visible settings view. The credential hash
// never leaves the agent.
type configResp struct {
	HiveUsername       *string `json:"hive_username"`
	AutoPin            bool    `json:"auto_pin"`
	MaxStorageGB       uint32  `json:"max_storage_gb"`
	AutoStart          bool    `json:"auto_start"`
	NotifyOnChallenge  bool    `json:"notify_on_challenge"`
	NotifyOnMilestone  bool    `json:"notify_on_milestone"`
	NotifyDailySummary bool    `json:"notify_daily_summary"`
}

func configView(cfg agentconfig.Config) configResp {
	resp := configResp{
		AutoPin:            cfg.AutoPin,
		MaxStorageGB:       cfg.MaxStorageGB,
		AutoStart:          cfg.AutoStart,
		NotifyOnChallenge:  cfg.NotifyOnChallenge,
		NotifyOnMilestone:  cfg.NotifyOnMilestone,
		NotifyDailySummary: cfg.NotifyDailySummary,
	}
	if cfg.HiveUsername != "" {
		resp.HiveUsername = &cfg.HiveUsername
	}
	return resp
}

func (r *Router) handleGetConfig(c *gin.Context) {
	writeJSON(c, http.StatusOK, configView(r.deps.Store.Load()))
}

func (r *Router) handleUpdateConfig(c *gin.Context) {
	var u agentconfig.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	cfg, err := r.deps.Store.Apply(u)
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, configView(cfg))
}

type pinReq struct {
	CID  string `json:"cid"`
	Name string `json:"name"`
}

func (r *Router) handlePin(c *gin.Context) {
	var req pinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.CID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "cid required"})
		return
	}
	if err := r.deps.Node.Pin(req.CID); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	r.deps.Stats.Invalidate()
	r.audit(c, history.Event{Type: history.EventPin, OccurredAt: time.Now(), CID: req.CID})
	writeJSON(c, http.StatusOK, okResp{Success: true})
}

func (r *Router) handleUnpin(c *gin.Context) {
	var req pinReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.CID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "cid required"})
		return
	}
	if err := r.deps.Node.Unpin(req.CID); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	r.deps.Stats.Invalidate()
	r.audit(c, history.Event{Type: history.EventUnpin, OccurredAt: time.Now(), CID: req.CID})
	writeJSON(c, http.StatusOK, okResp{Success: true})
}

func (r *Router) handlePins(c *gin.Context) {
	pins, err := r.deps.Node.Pins()
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if pins == nil {
		pins = []node.PinInfo{}
	}
	writeJSON(c, http.StatusOK, pins)
}

type earningsResp struct {
	TotalEarnedHBD       float64 `json:"total_earned_hbd"`
	TotalEarnedFormatted string  `json:"total_earned_formatted"`
	ChallengeCount       uint64  `json:"challenge_count"`
	LastChallengeAt      *int64  `json:"last_challenge_at"`
	AvgPerChallenge      float64 `json:"avg_per_challenge"`
}

func (r *Router) handleEarnings(c *gin.Context) {
	cfg := r.deps.Store.Load()
	resp := earningsResp{
		TotalEarnedHBD:       cfg.TotalEarnedHBD,
		TotalEarnedFormatted: formatHBD(cfg.TotalEarnedHBD),
		ChallengeCount:       cfg.ChallengeCount,
	}
	if cfg.LastChallengeAt > 0 {
		resp.LastChallengeAt = &cfg.LastChallengeAt
	}
	if cfg.ChallengeCount > 0 {
		resp.AvgPerChallenge = cfg.TotalEarnedHBD / float64(cfg.ChallengeCount)
	}
	writeJSON(c, http.StatusOK, resp)
}

type addEarningsReq struct {
	AmountHBD float64 `json:"amount_hbd"`
	Timestamp int64   `json:"challenge_timestamp"`
}

type addEarningsResp struct {
	Success        bool    `json:"success"`
	TotalEarnedHBD float64 `json:"total_earned_hbd"`
	ChallengeCount uint64  `json:"challenge_count"`
}

func (r *Router) handleAddEarnings(c *gin.Context) {
	var req addEarningsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	res, err := r.deps.Store.AddEarnings(req.AmountHBD, req.Timestamp)
	if err != nil {
		if errors.Is(err, agentconfig.ErrNegativeAmount) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	r.audit(c, history.Event{
		Type:       history.EventEarnings,
		OccurredAt: time.Now(),
		AmountHBD:  req.AmountHBD,
	})
	if res.Config.NotifyOnChallenge {
		r.deps.Notifier.Notify(notify.EventChallengeCompleted, map[string]any{
			"amount_hbd": req.AmountHBD,
			"total_hbd":  res.Config.TotalEarnedHBD,
		})
	}
	if res.Config.NotifyOnMilestone {
		for _, m := range res.Crossed {
			r.deps.Notifier.Notify(notify.EventMilestoneReached, map[string]any{
				"milestone_hbd": m,
				"total_hbd":     res.Config.TotalEarnedHBD,
			})
		}
	}
	writeJSON(c, http.StatusOK, addEarningsResp{
		Success:        true,
		TotalEarnedHBD: res.Config.TotalEarnedHBD,
		ChallengeCount: res.Config.ChallengeCount,
	})
}

type challengeReq struct {
	CID     string   `json:"cid"`
	Salt    string   `json:"salt"`
	Indices []uint64 `json:"block_indices"`
}

type challengeResp struct {
	Success   bool   `json:"success"`
	Proof     string `json:"proof,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

func (r *Router) handleChallenge(c *gin.Context) {
	var req challengeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if req.CID == "" {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "cid required"})
		return
	}
	res, err := r.deps.Challenger.Respond(req.CID, req.Salt, req.Indices)
	if err != nil {
		resp := challengeResp{LatencyMS: res.Latency.Milliseconds(), Error: err.Error()}
		var bfe *node.BlockFetchError
		switch {
		case errors.Is(err, node.ErrNotRunning):
			writeJSON(c, http.StatusServiceUnavailable, resp)
		case errors.As(err, &bfe):
			writeJSON(c, http.StatusNotFound, resp)
		default:
			writeJSON(c, http.StatusInternalServerError, resp)
		}
		return
	}
	writeJSON(c, http.StatusOK, challengeResp{
		Success:   true,
		Proof:     res.Proof,
		LatencyMS: res.Latency.Milliseconds(),
	})
}

type autostartResp struct {
	Enabled bool `json:"enabled"`
}

func (r *Router) handleAutostartStatus(c *gin.Context) {
	writeJSON(c, http.StatusOK, autostartResp{Enabled: r.deps.Autostart.Enabled()})
}

func (r *Router) handleAutostartEnable(c *gin.Context) {
	if err := r.deps.Autostart.Enable(); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	// Keeping the persisted flag in sync is best-effort; the platform entry is
	// the source of truth.
	if _, err := r.deps.Store.SetAutoStart(true); err != nil {
		slog.Warn("autostart flag write-back failed", "err", err)
	}
	writeJSON(c, http.StatusOK, autostartResp{Enabled: true})
}

func (r *Router) handleAutostartDisable(c *gin.Context) {
	if err := r.deps.Autostart.Disable(); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if _, err := r.deps.Store.SetAutoStart(false); err != nil {
		slog.Warn("autostart flag write-back failed", "err", err)
	}
	writeJSON(c, http.StatusOK, autostartResp{Enabled: false})
}

func (r *Router) audit(c *gin.Context, e history.Event) {
	if r.deps.Sink == nil {
		return
	}
	if err := r.deps.Sink.Send(c.Request.Context(), e); err != nil {
		slog.Warn("audit record failed", "type", e.Type, "err", err)
	}
}
