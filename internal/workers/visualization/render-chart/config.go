// internal/workers/visualization/render-chart/config.go
package renderchart

type Config struct {
	MaxSnippetBytes int
	// PreviewRows bounds the table preview attached to a failed render.
	PreviewRows int
}

func LoadConfig() *Config {
	return &Config{
		MaxSnippetBytes: 64 << 10,
		PreviewRows:     20,
	}
}
