package config

import (
	"os"
	"sync"
	"time"
)

type Config struct {
	LogLevel       string
	TmuxSocket     string
	DBPath         string
	Mode           string
	BridgeEnabled  bool
	BridgeBaseURL  string
	PollIntervalMS int
}

var (
	cacheTTL   = 10 * time.Second
	nowFunc    = time.Now
	cacheMu    sync.RWMutex
	cachedCfg  Config
	cachedAt   time.Time
	cacheValid bool
)

func LoadConfig() Config {
	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = nowFunc()
	cacheValid = true
	cacheMu.Unlock()
	return cfg
}

func GetConfig() *Config {
	now := nowFunc()
	cacheMu.RLock()
	valid := cacheValid && now.Sub(cachedAt) < cacheTTL
	if valid {
		out := cachedCfg
		cacheMu.RUnlock()
		return &out
	}
	cacheMu.RUnlock()

	cfg := loadFromEnv()
	cacheMu.Lock()
	cachedCfg = cfg
	cachedAt = now
	cacheValid = true
	cacheMu.Unlock()

	out := cfg
	return &out
}

func loadFromEnv() Config {
	level := os.Getenv("PANEHERD_LOG_LEVEL")
	if level == "" {
		level = "info"
	}

	socket := os.Getenv("PANEHERD_TMUX_SOCKET")
	dbPath := os.Getenv("PANEHERD_DB_PATH")

	mode := os.Getenv("PANEHERD_MODE")
	if mode == "" {
		mode = "standalone"
	}

	bridgeEnabled := os.Getenv("PANEHERD_BRIDGE_ENABLED") == "1"
	bridgeBase := os.Getenv("PANEHERD_BRIDGE_BASE_URL")
	if bridgeBase == "" {
		bridgeBase = "http://127.0.0.1:8787"
	}

	// 0 means "not set"; the TOML config supplies the interval then.
	pollMS := atoiOrDefault(os.Getenv("PANEHERD_POLL_INTERVAL_MS"), 0)

	return Config{
		LogLevel:       level,
		TmuxSocket:     socket,
		DBPath:         dbPath,
		Mode:           mode,
		BridgeEnabled:  bridgeEnabled,
		BridgeBaseURL:  bridgeBase,
		PollIntervalMS: pollMS,
	}
}

func atoiOrDefault(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n := 0
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return fallback
		}
		n = n*10 + int(v[i]-'0')
	}
	return n
}
