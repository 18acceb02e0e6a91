package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type HostConfig struct {
	Addr         string
	DatabaseURL  string
	SettingsPath string
	DatasetPath  string
	AdminToken   string
	TickEvery    time.Duration
}

type ClientConfig struct {
	HostBaseURL string
	PlayerName  string
	JournalDir  string
}

func LoadHostFromEnv() (HostConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("NIVESH_HOST_ADDR", ":8080")
	}

	cfg := HostConfig{
		Addr:         addr,
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SettingsPath: envDefault("NIVESH_SETTINGS", "settings.yaml"),
		DatasetPath:  envDefault("NIVESH_DATASET", "prices.yaml"),
		AdminToken:   strings.TrimSpace(os.Getenv("NIVESH_ADMIN_TOKEN")),
		TickEvery:    envDurationDefault("NIVESH_TICK_EVERY", 15*time.Second),
	}
	if cfg.TickEvery < time.Second {
		return cfg, fmt.Errorf("NIVESH_TICK_EVERY must be at least 1s")
	}
	return cfg, nil
}

func LoadClientFromEnv() ClientConfig {
	home, _ := os.UserHomeDir()
	journal := envDefault("NV_JOURNAL_DIR", "")
	if journal == "" && home != "" {
		journal = home + "/.nv"
	}
	return ClientConfig{
		HostBaseURL: strings.TrimRight(envDefault("NV_HOST_URL", "http://localhost:8080"), "/"),
		PlayerName:  envDefault("NV_PLAYER_NAME", ""),
		JournalDir:  journal,
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
