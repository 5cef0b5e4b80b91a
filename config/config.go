// Package config resolves server configuration from, in order of
// precedence: command-line flags, environment variables (including a
// local .env file), and an optional YAML file passed via -config.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// History backend names accepted by -history-backend.
const (
	BackendSnapshots = "snapshots"
	BackendReplay    = "replay"
)

// Config holds the resolved server configuration.
type Config struct {
	Port           int    `yaml:"port"`
	DBPath         string `yaml:"db_path"`
	HistoryBackend string `yaml:"history_backend"`
	SnapshotCron   string `yaml:"snapshot_cron"`
}

// Get resolves the configuration. A missing .env file is not an error.
func Get() (Config, error) {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to yaml config")
	port := flag.Int("port", 8080, "HTTP listen port")
	dbPath := flag.String("db", "billing.db", "path to sqlite database")
	backend := flag.String("history-backend", BackendSnapshots,
		"balance history source: snapshots or replay")
	snapshotCron := flag.String("snapshot-cron", "@daily", "cron spec for snapshot capture")
	flag.Parse()

	cfg := Config{
		Port:           *port,
		DBPath:         *dbPath,
		HistoryBackend: *backend,
		SnapshotCron:   *snapshotCron,
	}

	if *configPath != "" {
		fromFile, err := getYaml(*configPath)
		if err != nil {
			return Config{}, err
		}
		cfg = cfg.merge(fromFile)
	}

	if p := os.Getenv("PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return Config{}, fmt.Errorf("invalid PORT env var: %q", p)
		}
		cfg.Port = port
	}

	if cfg.HistoryBackend != BackendSnapshots && cfg.HistoryBackend != BackendReplay {
		return Config{}, fmt.Errorf("invalid history backend %q, expected %s or %s",
			cfg.HistoryBackend, BackendSnapshots, BackendReplay)
	}
	return cfg, nil
}

func getYaml(path string) (Config, error) {
	f, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(f, &cfg); err != nil {
		return Config{}, fmt.Errorf("incorrect yaml config %s: %w", path, err)
	}
	return cfg, nil
}

// merge overlays non-zero file values onto flag defaults.
func (c Config) merge(file Config) Config {
	if file.Port != 0 {
		c.Port = file.Port
	}
	if file.DBPath != "" {
		c.DBPath = file.DBPath
	}
	if file.HistoryBackend != "" {
		c.HistoryBackend = file.HistoryBackend
	}
	if file.SnapshotCron != "" {
		c.SnapshotCron = file.SnapshotCron
	}
	return c
}
