// internal/workers/matching/cleanup-snapshots/config.go
package cleanupsnapshots

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 60 * time.Second,
	}
}
