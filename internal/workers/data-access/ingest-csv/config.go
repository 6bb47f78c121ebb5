// internal/workers/data-access/ingest-csv/config.go
package ingestcsv

import "time"

type Config struct {
	Table       string
	PreviewRows int
	Timeout     time.Duration
	Comma       rune
}

func LoadConfig() *Config {
	return &Config{
		Table:       "data",
		PreviewRows: 5,
		Timeout:     60 * time.Second,
		Comma:       ',',
	}
}
