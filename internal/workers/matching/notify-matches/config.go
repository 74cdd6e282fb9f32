// internal/workers/matching/notify-matches/config.go
package notifymatches

import "time"

type Config struct {
	Timeout time.Duration
	// FromEmail is the verified SES sender address.
	FromEmail string
	// SnapshotWindow bounds how old a snapshot may be and still be
	// worth notifying about.
	SnapshotWindow time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Timeout:        30 * time.Second,
		FromEmail:      "matches@studymatch.app",
		SnapshotWindow: 7 * 24 * time.Hour,
	}
}
