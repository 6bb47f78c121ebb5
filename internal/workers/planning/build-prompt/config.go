// internal/workers/planning/build-prompt/config.go
package buildprompt

type Config struct {
	Table          string
	RowLimit       int
	QuestionMaxLen int
}

func LoadConfig() *Config {
	return &Config{
		Table:          "data",
		RowLimit:       100,
		QuestionMaxLen: 2000,
	}
}
