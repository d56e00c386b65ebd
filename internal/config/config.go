// Package config loads the agent's TOML configuration file.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/spknetwork/spk-agent/internal/logger"
	"github.com/spknetwork/spk-agent/internal/node"
	"github.com/spknetwork/spk-agent/internal/statuscache"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Listen          string         `toml:"listen" mapstructure:"listen"`
	BasePath        string         `toml:"base_path" mapstructure:"base_path"`
	AgentConfigPath string         `toml:"agent_config_path" mapstructure:"agent_config_path"`
	StatusTTLSecs   int            `toml:"status_ttl_secs" mapstructure:"status_ttl_secs"`
	Node            NodeConfig     `toml:"node" mapstructure:"node"`
	Metrics         MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
	History         HistoryConfig  `toml:"history" mapstructure:"history"`
	Log             *logger.Config `toml:"log" mapstructure:"log"`
}

// NodeConfig shapes the supervised storage node.
type NodeConfig struct {
	Binary      string `toml:"binary" mapstructure:"binary"`
	RepoPath    string `toml:"repo_path" mapstructure:"repo_path"`
	APIPort     int    `toml:"api_port" mapstructure:"api_port"`
	GatewayPort int    `toml:"gateway_port" mapstructure:"gateway_port"`
	SwarmPort   int    `toml:"swarm_port" mapstructure:"swarm_port"`
	StorageMax  string `toml:"storage_max" mapstructure:"storage_max"`
	GCWatermark int    `toml:"gc_watermark" mapstructure:"gc_watermark"`
	ConnMgrLow  int    `toml:"connmgr_low" mapstructure:"connmgr_low"`
	ConnMgrHigh int    `toml:"connmgr_high" mapstructure:"connmgr_high"`
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Listen  string `toml:"listen" mapstructure:"listen"`
}

// HistoryConfig selects the audit event sink by DSN; empty disables auditing.
type HistoryConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Default returns the configuration used when no file is given.
func Default() FileConfig {
	return FileConfig{
		Listen:        "127.0.0.1:5111",
		BasePath:      "/api",
		StatusTTLSecs: int(statuscache.DefaultTTL.Seconds()),
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Load reads path and merges it over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (FileConfig, error) {
	fc := Default()
	if path == "" {
		return fc, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return FileConfig{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return fc, nil
}

// NodeOptions translates the node section into supervisor options. Zero
// fields fall through to the supervisor's own defaults.
func (fc FileConfig) NodeOptions() node.Options {
	opts := node.Options{
		Binary:      fc.Node.Binary,
		RepoPath:    fc.Node.RepoPath,
		APIPort:     fc.Node.APIPort,
		GatewayPort: fc.Node.GatewayPort,
		SwarmPort:   fc.Node.SwarmPort,
		StorageMax:  fc.Node.StorageMax,
		GCWatermark: fc.Node.GCWatermark,
		ConnMgrLow:  fc.Node.ConnMgrLow,
		ConnMgrHigh: fc.Node.ConnMgrHigh,
	}
	if fc.Log != nil {
		opts.Log = *fc.Log
	}
	return opts
}
