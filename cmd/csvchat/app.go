// cmd/csvchat/app.go
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"csv-chat/internal/api"
	"csv-chat/internal/common/config"
	"csv-chat/internal/common/database"
	"csv-chat/internal/common/llm"
	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/observability"
	answerquestion "csv-chat/internal/workers/conversation/answer-question"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	ingestcsv "csv-chat/internal/workers/data-access/ingest-csv"
	runsql "csv-chat/internal/workers/data-access/run-sql"
	buildprompt "csv-chat/internal/workers/planning/build-prompt"
	extractplan "csv-chat/internal/workers/planning/extract-plan"
	generateplan "csv-chat/internal/workers/planning/generate-plan"
	renderchart "csv-chat/internal/workers/visualization/render-chart"
)

// app holds everything one csvchat invocation needs.
type app struct {
	cfg    *config.Config
	zapLog *zap.Logger
	log    logger.Logger
	obs    *observability.Observability
	store  database.Store
	redis  *database.RedisClient

	ingest *ingestcsv.Handler
	schema *describetable.Handler
	answer *answerquestion.Handler
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log logger.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName), map[string]interface{}{
				"error":       err,
				"attempt":     i + 1,
				"maxRetries":  maxRetries,
				"nextRetryIn": delay.String(),
			})
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

func newApp(configPath string) (*app, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.NewZapAdapter(zapLog)

	store, err := database.NewStore(cfg.Store, cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		zapLog: zapLog,
		log:    log,
		obs:    observability.New(cfg.App.Name),
		store:  store,
	}

	// The plan cache is optional; a Redis outage only costs cache hits.
	if cfg.CacheEnabled() {
		rc := database.NewRedis(cfg.Database.Redis)
		err := retryWithBackoff(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return rc.Ping(ctx)
		}, 3, time.Second, log, "Redis connection")
		if err != nil {
			log.Warn("plan cache disabled", map[string]interface{}{"error": err})
			_ = rc.Close()
		} else {
			a.redis = rc
		}
	}

	a.wire()
	return a, nil
}

func (a *app) wire() {
	cfg := a.cfg
	dialect := a.store.Dialect()
	table := cfg.Store.Table

	ingestCfg := ingestcsv.LoadConfig()
	ingestCfg.Table = table
	a.ingest = ingestcsv.NewHandler(ingestCfg, a.store, a.log)

	schemaCfg := describetable.LoadConfig()
	schemaCfg.Table = table
	schemaCfg.SampleLimit = cfg.Pipeline.SampleLimit
	a.schema = describetable.NewHandler(schemaCfg, a.store, a.log)

	promptCfg := buildprompt.LoadConfig()
	promptCfg.Table = table
	promptCfg.QuestionMaxLen = cfg.Pipeline.QuestionMaxLen

	planCfg := generateplan.LoadConfig()
	planCfg.Model = cfg.LLM.Model
	planCfg.CacheTTL = config.GetDuration(cfg.Cache.TTL)
	planCfg.CachePrefix = cfg.Cache.Prefix

	chartCfg := renderchart.LoadConfig()
	chartCfg.PreviewRows = cfg.Pipeline.PreviewRows

	var rdb *redis.Client
	if a.redis != nil {
		rdb = a.redis.Client
	}
	steps := answerquestion.Steps{
		Schema: a.schema,
		Prompt: buildprompt.NewHandler(promptCfg, a.log),
		Plan: generateplan.NewHandler(planCfg, llm.NewClient(cfg.LLM, a.log),
			extractplan.NewHandler(extractplan.LoadConfig(), a.log), rdb, a.log),
		Query: runsql.NewHandler(runsql.LoadConfig(), a.store, a.log),
		Chart: renderchart.NewHandler(chartCfg, a.log),
	}

	answerCfg := answerquestion.LoadConfig()
	answerCfg.Table = table
	answerCfg.Dialect = dialect
	a.answer = answerquestion.NewHandler(answerCfg, steps, a.obs, a.log)
}

func (a *app) apiServer() *api.Server {
	return api.NewServer(&api.Config{UploadMaxBytes: int64(a.cfg.Pipeline.UploadMaxBytes)}, api.Services{
		Ingest: a.ingest,
		Schema: a.schema,
		Answer: a.answer,
		Store:  a.store,
	}, a.log)
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("Error closing Redis client", map[string]interface{}{"error": err})
		}
	}
	a.obs.Shutdown()
	_ = a.zapLog.Sync()
}
