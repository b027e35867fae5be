// Package config loads the runtime configuration: game rules, storage,
// the HTTP API, the remote leaderboard and logging.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/tapajos/internal/economy"
	"github.com/talgya/tapajos/internal/engine"
)

// Config is the root of tapajos.yaml.
type Config struct {
	Game        GameConfig        `yaml:"game"`
	Database    DatabaseConfig    `yaml:"database"`
	API         APIConfig         `yaml:"api"`
	Leaderboard LeaderboardConfig `yaml:"leaderboard"`
	Entropy     EntropyConfig     `yaml:"entropy"`
	Log         LogConfig         `yaml:"log"`
}

type GameConfig struct {
	StartingCash            int64   `yaml:"starting_cash"`
	Horizon                 int     `yaml:"horizon"`
	BaseRate                float64 `yaml:"base_rate"`
	MarketIndex             float64 `yaml:"market_index"`
	CapRate                 float64 `yaml:"cap_rate"`
	Seed                    int64   `yaml:"seed"`
	DeferConversionProceeds bool    `yaml:"defer_conversion_proceeds"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Port      int     `yaml:"port"`
	AdminKey  string  `yaml:"admin_key"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client
	Burst     int     `yaml:"burst"`
}

// LeaderboardConfig points at the shared score sheet. Scores are read as
// CSV from SheetURL and submitted as a form post to FormURL.
type LeaderboardConfig struct {
	SheetURL      string        `yaml:"sheet_url"`
	FormURL       string        `yaml:"form_url"`
	Version       string        `yaml:"version"`
	SubmitTimeout time.Duration `yaml:"submit_timeout"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	Fields        FormFields    `yaml:"fields"`
}

// FormFields are the form input names for each submitted value.
type FormFields struct {
	Name     string `yaml:"name"`
	NetWorth string `yaml:"net_worth"`
	Props    string `yaml:"props"`
	AvgSat   string `yaml:"avg_sat"`
	Year     string `yaml:"year"`
	Version  string `yaml:"version"`
}

type EntropyConfig struct {
	RandomOrgKey string `yaml:"random_org_key"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the standard game with a local database and the public
// score sheet.
func Default() Config {
	m := economy.DefaultMarket()
	return Config{
		Game: GameConfig{
			StartingCash: 10_000_000,
			Horizon:      15,
			BaseRate:     m.BaseRate,
			MarketIndex:  m.Index,
			CapRate:      m.CapRate,
		},
		Database: DatabaseConfig{Path: "data/tapajos.db"},
		API: APIConfig{
			Port:      8080,
			RateLimit: 5,
			Burst:     20,
		},
		Leaderboard: LeaderboardConfig{
			SheetURL:      "https://score-proxy.vercel.app/api/sheet",
			FormURL:       "https://docs.google.com/forms/d/e/1FAIpQLSek9RtCyZUpHmAgBm8L0ymRtJIqZ7Qxm-yZpU9BGQM5LMoOMA/formResponse",
			Version:       "1.1",
			SubmitTimeout: 2500 * time.Millisecond,
			CacheTTL:      5 * time.Minute,
			Fields: FormFields{
				Name:     "entry.1521025478",
				NetWorth: "entry.1264246447",
				Props:    "entry.1926418411",
				AvgSat:   "entry.1041530574",
				Year:     "entry.1154333964",
				Version:  "entry.143904483",
			},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults, then applies environment
// overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the game cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Game.StartingCash < 0 {
		errs = append(errs, errors.New("game.starting_cash must not be negative"))
	}
	if c.Game.Horizon < 1 {
		errs = append(errs, errors.New("game.horizon must be at least 1"))
	}
	if c.Game.BaseRate < 0 || c.Game.BaseRate > 1 {
		errs = append(errs, errors.New("game.base_rate must be within [0, 1]"))
	}
	if c.Game.MarketIndex <= 0 {
		errs = append(errs, errors.New("game.market_index must be positive"))
	}
	if c.Game.CapRate < economy.CapRateMin || c.Game.CapRate > economy.CapRateMax {
		errs = append(errs, fmt.Errorf("game.cap_rate must be within [%g, %g]", economy.CapRateMin, economy.CapRateMax))
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.API.RateLimit < 0 || c.API.Burst < 0 {
		errs = append(errs, errors.New("api.rate_limit and api.burst must not be negative"))
	}
	if c.Leaderboard.SubmitTimeout <= 0 {
		errs = append(errs, errors.New("leaderboard.submit_timeout must be positive"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// GameOptions converts the game section into engine rules.
func (c Config) GameOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.StartingCash = c.Game.StartingCash
	opts.Horizon = c.Game.Horizon
	opts.Market = economy.Market{
		BaseRate: c.Game.BaseRate,
		Index:    c.Game.MarketIndex,
		CapRate:  c.Game.CapRate,
	}
	opts.DeferConversionProceeds = c.Game.DeferConversionProceeds
	return opts
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
