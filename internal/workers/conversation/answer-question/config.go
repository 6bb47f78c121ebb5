// internal/workers/conversation/answer-question/config.go
package answerquestion

import (
	"time"

	"csv-chat/internal/common/database"
)

type Config struct {
	Table   string
	Dialect database.Dialect
	// Timeout bounds one question end to end; zero leaves it to the caller.
	Timeout time.Duration
}

func LoadConfig() *Config {
	return &Config{
		Table:   "data",
		Dialect: database.DialectSQLite,
		Timeout: 3 * time.Minute,
	}
}
