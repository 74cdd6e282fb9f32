// internal/workers/matching/suggest-groups/config.go
package suggestgroups

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
	}
}
