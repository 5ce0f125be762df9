package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"aula-live-service/internal/app"
	"aula-live-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches question sets per session+kind with a TTL so repeated
// request-questions and scoring calls don't re-read the store.
type QuestionCache struct {
	loader app.QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu    sync.RWMutex
	cache map[string]cachedQuestions
}

type cachedQuestions struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionCache(loader app.QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		cache:  make(map[string]cachedQuestions),
	}
}

func (c *QuestionCache) Questions(ctx context.Context, sessionID int64, kind domain.ContributionKind) ([]domain.Question, error) {
	key := cacheKey(sessionID, kind)
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.questions, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[key]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.questions, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx, sessionID, kind)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cache[key] = cachedQuestions{questions: questions, expiresAt: now.Add(c.ttlWithJitter())}
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *QuestionCache) Invalidate(_ context.Context, sessionID int64, kind domain.ContributionKind) error {
	c.mu.Lock()
	delete(c.cache, cacheKey(sessionID, kind))
	c.mu.Unlock()
	return nil
}

func cacheKey(sessionID int64, kind domain.ContributionKind) string {
	return fmt.Sprintf("%d:%s", sessionID, kind)
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations; global rand is goroutine-safe
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
