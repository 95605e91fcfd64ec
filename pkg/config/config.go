package config

// Package config provides a reusable loader for coordinator configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"coordinator-core/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a coordinator process. It
// mirrors the structure of the YAML files under cmd/coordinatord/config.
type Config struct {
	Coordinator struct {
		ID           string `mapstructure:"id" json:"id"`
		ListenAddr   string `mapstructure:"listen_addr" json:"listen_addr"`
		AdminAddr    string `mapstructure:"admin_addr" json:"admin_addr"`
		DataDir      string `mapstructure:"data_dir" json:"data_dir"`
		MeshToken    string `mapstructure:"mesh_token" json:"mesh_token"`
		PortalToken  string `mapstructure:"portal_token" json:"portal_token"`
		MaxClockSkewMS int  `mapstructure:"max_clock_skew_ms" json:"max_clock_skew_ms"`
	} `mapstructure:"coordinator" json:"coordinator"`

	Mesh struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		DiscoveryTag   string   `mapstructure:"discovery_tag" json:"discovery_tag"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
		CacheFile      string   `mapstructure:"cache_file" json:"cache_file"`
		AnnounceMS     int      `mapstructure:"announce_interval_ms" json:"announce_interval_ms"`
	} `mapstructure:"mesh" json:"mesh"`

	Ledger struct {
		WALPath          string `mapstructure:"wal_path" json:"wal_path"`
		SnapshotPath     string `mapstructure:"snapshot_path" json:"snapshot_path"`
		SnapshotInterval int    `mapstructure:"snapshot_interval" json:"snapshot_interval"`
		CheckpointEvery  int    `mapstructure:"checkpoint_every" json:"checkpoint_every"`
		CheckpointSecs   int    `mapstructure:"checkpoint_seconds" json:"checkpoint_seconds"`
	} `mapstructure:"ledger" json:"ledger"`

	Scheduler struct {
		HighCPUPercent    float64 `mapstructure:"high_cpu_percent" json:"high_cpu_percent"`
		LaptopLowPercent  float64 `mapstructure:"laptop_low_percent" json:"laptop_low_percent"`
		LaptopCritPercent float64 `mapstructure:"laptop_crit_percent" json:"laptop_crit_percent"`
	} `mapstructure:"scheduler" json:"scheduler"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/coordinatord/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv() // picks up from .env

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the COORD_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("COORD_ENV", ""))
}
