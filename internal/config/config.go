// Package config loads server settings from an optional YAML file with
// environment variable overrides. Env always wins so container deploys
// can tweak a baked-in config file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type MapConfig struct {
	// ZonesCSV points at a zone,lat,lng,weight file. Empty means the
	// server builds a demo geohash grid instead.
	ZonesCSV      string  `yaml:"zones_csv"`
	GridLat       float64 `yaml:"grid_lat"`
	GridLng       float64 `yaml:"grid_lng"`
	GridCells     int     `yaml:"grid_cells"`
	GridPrecision int     `yaml:"grid_precision"`
	DetourFactor  float64 `yaml:"detour_factor"`
	SpeedKmh      float64 `yaml:"speed_kmh"`
	CostPerKm     float64 `yaml:"cost_per_km"`
}

type SolverConfig struct {
	TimeBudgetMs int `yaml:"time_budget_ms"`
	NodeLimit    int `yaml:"node_limit"`
}

type Config struct {
	Addr        string       `yaml:"addr"`
	DatabaseURL string       `yaml:"database_url"`
	RedisURL    string       `yaml:"redis_url"`
	RateRPS     float64      `yaml:"rate_rps"`
	RateBurst   int          `yaml:"rate_burst"`
	Map         MapConfig    `yaml:"map"`
	Solver      SolverConfig `yaml:"solver"`
}

func Default() Config {
	return Config{
		Addr:      ":8080",
		RateRPS:   50,
		RateBurst: 100,
		Map: MapConfig{
			GridLat:       41.9,
			GridLng:       12.5,
			GridCells:     49,
			GridPrecision: 6,
			DetourFactor:  1.3,
			SpeedKmh:      60,
			CostPerKm:     0.7,
		},
		Solver: SolverConfig{
			TimeBudgetMs: 5000,
			NodeLimit:    0,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies env
// overrides. A missing file is an error only when explicitly requested.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv builds the config from defaults plus environment only,
// honoring CONFIG_PATH when set.
func FromEnv() (Config, error) {
	return Load(os.Getenv("CONFIG_PATH"))
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
	if v := os.Getenv("ZONES_CSV"); v != "" {
		cfg.Map.ZonesCSV = v
	}
	if v, err := strconv.ParseFloat(os.Getenv("RATE_RPS"), 64); err == nil && v > 0 {
		cfg.RateRPS = v
	}
	if v, err := strconv.Atoi(os.Getenv("RATE_BURST")); err == nil && v > 0 {
		cfg.RateBurst = v
	}
	if v, err := strconv.Atoi(os.Getenv("SOLVER_TIME_BUDGET_MS")); err == nil && v > 0 {
		cfg.Solver.TimeBudgetMs = v
	}
	if v, err := strconv.Atoi(os.Getenv("SOLVER_NODE_LIMIT")); err == nil && v > 0 {
		cfg.Solver.NodeLimit = v
	}
}

func (c Config) validate() error {
	if c.Map.DetourFactor < 1 {
		return fmt.Errorf("map.detour_factor must be >= 1, got %v", c.Map.DetourFactor)
	}
	if c.Map.SpeedKmh <= 0 {
		return fmt.Errorf("map.speed_kmh must be positive, got %v", c.Map.SpeedKmh)
	}
	if c.Map.CostPerKm < 0 {
		return fmt.Errorf("map.cost_per_km must be non-negative, got %v", c.Map.CostPerKm)
	}
	if c.Solver.TimeBudgetMs <= 0 {
		return fmt.Errorf("solver.time_budget_ms must be positive, got %v", c.Solver.TimeBudgetMs)
	}
	return nil
}
