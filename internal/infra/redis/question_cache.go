package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionCache keeps the question+option set for a session and quiz kind as
// a JSON blob in Redis:
//
//	SET session:{sessionID}:questions:{kind} <json> EX <ttl>
//
// Misses fall back to the loader; singleflight collapses concurrent misses
// for the same key onto one store read.
type QuestionCache struct {
	client *redis.Client
	loader app.QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionCache(client *redis.Client, loader app.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

func (c *QuestionCache) Questions(ctx context.Context, sessionID int64, kind domain.ContributionKind) ([]domain.Question, error) {
	key := c.key(sessionID, kind)

	if questions, ok := c.fromCache(ctx, key); ok {
		return questions, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the key.
		if questions, ok := c.fromCache(ctx, key); ok {
			return questions, nil
		}

		questions, err := c.loader.LoadQuestions(ctx, sessionID, kind)
		if err != nil {
			return nil, err
		}

		if raw, err := json.Marshal(questions); err == nil {
			// best-effort: a failed cache write only costs the next reader a reload
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) Invalidate(ctx context.Context, sessionID int64, kind domain.ContributionKind) error {
	return c.client.Del(ctx, c.key(sessionID, kind)).Err()
}

func (c *QuestionCache) fromCache(ctx context.Context, key string) ([]domain.Question, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var questions []domain.Question
	if err := json.Unmarshal(raw, &questions); err != nil {
		return nil, false
	}
	return questions, true
}

func (c *QuestionCache) key(sessionID int64, kind domain.ContributionKind) string {
	return fmt.Sprintf("session:%d:questions:%s", sessionID, kind)
}

// ttlWithJitter uses the global rand source, which is safe for the concurrent
// singleflight callbacks that fill different keys.
func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
