// internal/workers/data-access/describe-table/config.go
package describetable

import "time"

type Config struct {
	Table       string
	SampleLimit int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Table:       "data",
		SampleLimit: 5,
		Timeout:     10 * time.Second,
	}
}
