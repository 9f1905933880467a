package global

import (
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	configTOMLFileName = "config.toml"

	defaultPollIntervalMS = 2000
	minPollIntervalMS     = 250
	defaultMaxRetries     = 3
	defaultSettleDelayMS  = 3000
)

type GlobalConfig struct {
	DBPath  string        `json:"db_path,omitempty" toml:"db_path,omitempty"`
	Monitor MonitorConfig `json:"monitor" toml:"monitor"`
	Notify  NotifyConfig  `json:"notify" toml:"notify"`
	Bridge  BridgeConfig  `json:"bridge" toml:"bridge"`
}

// MonitorConfig tunes the per-session poll loop. Zero values mean "use the
// default"; the floors keep hand-edited files from hammering tmux.
type MonitorConfig struct {
	PollIntervalMS int  `json:"poll_interval_ms" toml:"poll_interval_ms"`
	MaxRetries     int  `json:"max_retries" toml:"max_retries"`
	SettleDelayMS  int  `json:"settle_delay_ms" toml:"settle_delay_ms"`
	AutoRestart    bool `json:"auto_restart" toml:"auto_restart"`
}

type NotifyConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Command string `json:"command" toml:"command"`
}

type BridgeConfig struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	BaseURL string `json:"base_url" toml:"base_url"`
	Agent   string `json:"agent" toml:"agent"`
}

type ConfigStore struct {
	dir string
}

func NewConfigStore(dir string) *ConfigStore {
	return &ConfigStore{dir: dir}
}

func (s *ConfigStore) LoadOrInit() (GlobalConfig, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return GlobalConfig{}, err
	}

	path := filepath.Join(s.dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg GlobalConfig
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return GlobalConfig{}, err
		}
		return normalizeConfig(cfg), nil
	} else if !os.IsNotExist(err) {
		return GlobalConfig{}, err
	}

	cfg := normalizeConfig(defaultGlobalConfig())
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return GlobalConfig{}, err
	}
	return cfg, nil
}

func (s *ConfigStore) Save(cfg GlobalConfig) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	return writeTOMLAtomically(filepath.Join(s.dir, configTOMLFileName), normalizeConfig(cfg))
}

func defaultGlobalConfig() GlobalConfig {
	return GlobalConfig{
		Monitor: MonitorConfig{
			PollIntervalMS: defaultPollIntervalMS,
			MaxRetries:     defaultMaxRetries,
			SettleDelayMS:  defaultSettleDelayMS,
			AutoRestart:    true,
		},
	}
}

func normalizeConfig(cfg GlobalConfig) GlobalConfig {
	cfg.DBPath = strings.TrimSpace(cfg.DBPath)
	cfg.Monitor = normalizeMonitor(cfg.Monitor)
	cfg.Notify.Command = strings.TrimSpace(cfg.Notify.Command)
	if cfg.Notify.Command == "" {
		cfg.Notify.Enabled = false
	}
	cfg.Bridge.BaseURL = strings.TrimSpace(cfg.Bridge.BaseURL)
	cfg.Bridge.Agent = strings.TrimSpace(cfg.Bridge.Agent)
	if cfg.Bridge.BaseURL == "" {
		cfg.Bridge.Enabled = false
	}
	return cfg
}

func normalizeMonitor(m MonitorConfig) MonitorConfig {
	if m.PollIntervalMS <= 0 {
		m.PollIntervalMS = defaultPollIntervalMS
	}
	if m.PollIntervalMS < minPollIntervalMS {
		m.PollIntervalMS = minPollIntervalMS
	}
	if m.MaxRetries <= 0 {
		m.MaxRetries = defaultMaxRetries
	}
	if m.SettleDelayMS <= 0 {
		m.SettleDelayMS = defaultSettleDelayMS
	}
	return m
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
