package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides file settings with environment variables.
func (c *Config) ApplyEnv() {
	c.Database.Path = envOrDefault("TAPAJOS_DB_PATH", c.Database.Path)
	c.API.Port = envIntOrDefault("TAPAJOS_PORT", c.API.Port)
	c.API.AdminKey = envOrDefault("TAPAJOS_ADMIN_KEY", c.API.AdminKey)
	c.Entropy.RandomOrgKey = envOrDefault("RANDOM_ORG_API_KEY", c.Entropy.RandomOrgKey)
	c.Log.Level = envOrDefault("TAPAJOS_LOG_LEVEL", c.Log.Level)
	c.Leaderboard.SheetURL = envOrDefault("TAPAJOS_SHEET_URL", c.Leaderboard.SheetURL)
	c.Leaderboard.FormURL = envOrDefault("TAPAJOS_FORM_URL", c.Leaderboard.FormURL)
	if seed := envIntOrDefault("TAPAJOS_SEED", 0); seed != 0 {
		c.Game.Seed = int64(seed)
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
