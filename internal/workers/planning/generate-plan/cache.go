// internal/workers/planning/generate-plan/cache.go
package generateplan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"csv-chat/internal/common/logger"
	"csv-chat/internal/common/metrics"
	"csv-chat/internal/models"
)

// planCache stores successful plans in Redis. A nil client disables it and
// every Redis failure degrades to a miss.
type planCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger logger.Logger
}

func (c *planCache) enabled() bool {
	return c != nil && c.client != nil
}

// CacheKey derives the Redis key for a question against a schema.
func CacheKey(prefix, model, schema, question string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + schema + "\x00" + question))
	return prefix + hex.EncodeToString(sum[:])
}

func (c *planCache) get(ctx context.Context, key string) (*models.QueryPlan, bool) {
	if !c.enabled() {
		return nil, false
	}
	val, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		metrics.PlanCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("plan cache read failed", map[string]interface{}{"error": err})
		return nil, false
	}

	var plan models.QueryPlan
	if err := json.Unmarshal([]byte(val), &plan); err != nil || plan.SQL == "" {
		metrics.PlanCacheLookups.WithLabelValues("error").Inc()
		c.logger.Warn("discarding unreadable cached plan", map[string]interface{}{"key": key})
		return nil, false
	}
	metrics.PlanCacheLookups.WithLabelValues("hit").Inc()
	return &plan, true
}

func (c *planCache) set(ctx context.Context, key string, plan models.QueryPlan) {
	if !c.enabled() {
		return
	}
	data, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("plan cache write failed", map[string]interface{}{"error": err})
	}
}
