package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pandit-quiz-service/internal/domain"
)

// QuestionLoader fetches a whole category from a backing store (bundle files, Postgres).
type QuestionLoader interface {
	LoadCategory(ctx context.Context, category domain.Category) ([]domain.Question, error)
}

// QuestionRepository caches categories with TTL to avoid repeated loader hits and
// serves random batches from the cached copy.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[domain.Category]cachedCategory
}

type cachedCategory struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[domain.Category]cachedCategory),
	}
}

// FetchAll returns the cached category, loading it on a miss.
func (r *QuestionRepository) FetchAll(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[category]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.questions, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(string(category), func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[category]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.questions, nil
		}
		r.mu.RUnlock()

		questions, err := r.loader.LoadCategory(ctx, category)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.cache[category] = cachedCategory{
			questions: questions,
			expiresAt: now.Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// FetchRandom samples up to count questions outside exclude from the cached category.
func (r *QuestionRepository) FetchRandom(ctx context.Context, category domain.Category, count int, exclude map[string]struct{}) ([]domain.Question, error) {
	all, err := r.FetchAll(ctx, category)
	if err != nil {
		return nil, err
	}
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return Sample(all, count, exclude, r.rnd), nil
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// Sample picks up to count questions outside exclude without replacement.
func Sample(questions []domain.Question, count int, exclude map[string]struct{}, rnd interface{ Intn(int) int }) []domain.Question {
	candidates := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if _, skip := exclude[q.ID]; !skip {
			candidates = append(candidates, q)
		}
	}
	if count <= 0 || count > len(candidates) {
		count = len(candidates)
	}
	for i := 0; i < count; i++ {
		j := i + rnd.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:count]
}
