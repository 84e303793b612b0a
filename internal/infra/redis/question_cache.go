package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/infra/memory"
)

// QuestionLoader fetches a category from a backing store (e.g., Postgres, bundle files).
type QuestionLoader interface {
	LoadCategory(ctx context.Context, category domain.Category) ([]domain.Question, error)
}

// QuestionCache caches category questions in Redis (hash per category) and falls back to a loader on cache miss.
// Questions are stored as: HSET quiz:{category}:questions {questionID} {json}
type QuestionCache struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewQuestionCache(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FetchAll returns every cached question of category, loading and caching on a miss.
// A Redis failure degrades to a direct loader read.
func (c *QuestionCache) FetchAll(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	key := c.questionsKey(category)

	if cached, err := c.client.HGetAll(ctx, key).Result(); err == nil && len(cached) > 0 {
		return decodeQuestions(category, cached), nil
	}

	result, err, _ := c.sf.Do(string(category), func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if cached, err := c.client.HGetAll(ctx, key).Result(); err == nil && len(cached) > 0 {
			return decodeQuestions(category, cached), nil
		}

		questions, err := c.loader.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		ttl := c.ttlWithJitter()
		pipe := c.client.Pipeline()
		for _, q := range questions {
			if q.ID == "" {
				continue
			}
			payload, err := json.Marshal(q)
			if err != nil {
				return nil, err
			}
			pipe.HSet(ctx, key, q.ID, payload)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		// caching is best-effort
		_, _ = pipe.Exec(ctx)

		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// FetchRandom samples up to count questions outside exclude.
func (c *QuestionCache) FetchRandom(ctx context.Context, category domain.Category, count int, exclude map[string]struct{}) ([]domain.Question, error) {
	all, err := c.FetchAll(ctx, category)
	if err != nil {
		return nil, err
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return memory.Sample(all, count, exclude, c.rnd), nil
}

// Invalidate drops the cached copy of category, e.g. after a seed.
func (c *QuestionCache) Invalidate(ctx context.Context, category domain.Category) error {
	return c.client.Del(ctx, c.questionsKey(category)).Err()
}

func (c *QuestionCache) questionsKey(category domain.Category) string {
	return "quiz:" + string(category) + ":questions"
}

func decodeQuestions(category domain.Category, cached map[string]string) []domain.Question {
	questions := make([]domain.Question, 0, len(cached))
	for id, payload := range cached {
		var q domain.Question
		if err := json.Unmarshal([]byte(payload), &q); err != nil {
			continue
		}
		q.ID = id
		if q.Category == "" {
			q.Category = category
		}
		questions = append(questions, q)
	}
	return questions
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
