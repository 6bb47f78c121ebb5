// internal/workers/data-access/run-sql/config.go
package runsql

import "time"

type Config struct {
	Timeout time.Duration
	// LogRows is how many result rows are written to the debug log.
	LogRows int
	Explain bool
}

func LoadConfig() *Config {
	return &Config{
		Timeout: 30 * time.Second,
		LogRows: 5,
		Explain: true,
	}
}
