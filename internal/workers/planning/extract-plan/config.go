// internal/workers/planning/extract-plan/config.go
package extractplan

type Config struct {
	// StripVizImports removes import lines from viz_code at extraction time.
	StripVizImports bool
	// EmbeddedJSON enables scanning prose for the first balanced {...} object.
	EmbeddedJSON bool
}

func LoadConfig() *Config {
	return &Config{
		StripVizImports: true,
		EmbeddedJSON:    true,
	}
}
