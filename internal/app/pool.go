package app

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/domain"
)

// QuestionSource is the repository adapter the pool draws from.
type QuestionSource interface {
	// FetchRandom returns up to count questions of category whose ids are not in exclude.
	FetchRandom(ctx context.Context, category domain.Category, count int, exclude map[string]struct{}) ([]domain.Question, error)
	// FetchAll returns the whole category. Ids are not guaranteed unique.
	FetchAll(ctx context.Context, category domain.Category) ([]domain.Question, error)
}

// RandomSource picks uniformly in [0, n).
type RandomSource interface {
	Intn(n int) int
}

type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

// LoadStrategy selects how a pool is filled.
type LoadStrategy string

const (
	// LoadRandom fetches an initial random batch and tops it up once at the refill checkpoint.
	LoadRandom LoadStrategy = "random"
	// LoadBundle loads the whole category up front; no refill happens.
	LoadBundle LoadStrategy = "bundle"
)

// ParseLoadStrategy maps a config value onto a strategy.
func ParseLoadStrategy(raw string) (LoadStrategy, error) {
	switch LoadStrategy(raw) {
	case "", LoadRandom:
		return LoadRandom, nil
	case LoadBundle:
		return LoadBundle, nil
	}
	return "", fmt.Errorf("unknown loading strategy %q", raw)
}

// PoolConfig sizes the pool batches.
type PoolConfig struct {
	Strategy     LoadStrategy
	InitialBatch int
	RefillBatch  int
	// RefillAt is the question number that triggers the one background refill.
	RefillAt     int
	FetchTimeout time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Strategy == "" {
		c.Strategy = LoadRandom
	}
	if c.InitialBatch <= 0 {
		c.InitialBatch = 10
	}
	if c.RefillBatch <= 0 {
		c.RefillBatch = 20
	}
	if c.RefillAt <= 0 {
		c.RefillAt = 8
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	return c
}

// Pool is the working set of questions for one session.
// available only grows; used is cleared when every available question was shown.
type Pool struct {
	category domain.Category
	source   QuestionSource
	rnd      RandomSource
	cfg      PoolConfig
	log      logrus.FieldLogger

	mu            sync.Mutex
	available     []domain.Question
	ids           map[string]struct{}
	texts         map[string]struct{}
	used          map[string]struct{}
	refillStarted bool
	resets        int
	refills       sync.WaitGroup
}

// InitializePool creates a pool and loads its first batch. A failing source leaves
// the pool empty; the failure is logged, not returned.
func InitializePool(ctx context.Context, category domain.Category, source QuestionSource, rnd RandomSource, cfg PoolConfig, log logrus.FieldLogger) *Pool {
	if rnd == nil {
		rnd = globalRand{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Pool{
		category: category,
		source:   source,
		rnd:      rnd,
		cfg:      cfg.withDefaults(),
		log:      log.WithField("category", category),
		ids:      make(map[string]struct{}),
		texts:    make(map[string]struct{}),
		used:     make(map[string]struct{}),
	}
	p.load(ctx)
	return p
}

func (p *Pool) load(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	defer cancel()

	var (
		batch []domain.Question
		err   error
	)
	if p.cfg.Strategy == LoadBundle {
		batch, err = p.source.FetchAll(fetchCtx, p.category)
		batch = assignSyntheticIDs(p.category, batch)
	} else {
		batch, err = p.source.FetchRandom(fetchCtx, p.category, p.cfg.InitialBatch, nil)
	}
	if err != nil {
		p.log.WithError(err).Warn("initial question fetch failed")
		return
	}

	p.mu.Lock()
	added := p.mergeLocked(batch)
	p.mu.Unlock()
	p.log.WithField("questions", added).Debug("pool loaded")
}

// EnsureStocked starts the one background refill once questionNumber reaches the
// checkpoint. It never blocks on the fetch.
func (p *Pool) EnsureStocked(ctx context.Context, questionNumber int) {
	if p.cfg.Strategy != LoadRandom {
		return
	}

	p.mu.Lock()
	if p.refillStarted || questionNumber < p.cfg.RefillAt {
		p.mu.Unlock()
		return
	}
	p.refillStarted = true
	exclude := make(map[string]struct{}, len(p.ids))
	for id := range p.ids {
		exclude[id] = struct{}{}
	}
	p.mu.Unlock()

	p.refills.Add(1)
	go func() {
		defer p.refills.Done()
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FetchTimeout)
		defer cancel()

		batch, err := p.source.FetchRandom(fetchCtx, p.category, p.cfg.RefillBatch, exclude)
		if err != nil {
			p.log.WithError(err).Warn("pool refill failed")
			return
		}
		p.mu.Lock()
		added := p.mergeLocked(batch)
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{"question_number": questionNumber, "added": added}).Debug("pool refilled")
	}()
}

// WaitRefill blocks until an in-flight refill has merged.
func (p *Pool) WaitRefill() {
	p.refills.Wait()
}

// SelectNext picks an unused question uniformly at random and marks it used.
// When everything was shown the used set is cleared so play continues with repeats.
// ErrPoolExhausted is returned only if nothing could be loaded at all, after one reload attempt.
func (p *Pool) SelectNext(ctx context.Context) (domain.Question, error) {
	p.mu.Lock()
	empty := len(p.available) == 0
	p.mu.Unlock()
	if empty {
		p.load(ctx)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.available) == 0 {
		return domain.Question{}, domain.ErrPoolExhausted
	}

	candidates := p.unusedLocked()
	if len(candidates) == 0 {
		p.used = make(map[string]struct{})
		p.resets++
		p.log.WithField("questions", len(p.available)).Info("pool exhausted, repeating questions")
		candidates = p.unusedLocked()
	}

	q := candidates[p.rnd.Intn(len(candidates))]
	p.used[q.ID] = struct{}{}
	return q, nil
}

func (p *Pool) unusedLocked() []domain.Question {
	out := make([]domain.Question, 0, len(p.available))
	for _, q := range p.available {
		if _, seen := p.used[q.ID]; !seen {
			out = append(out, q)
		}
	}
	return out
}

// mergeLocked appends questions whose id and normalized text are new to the pool.
func (p *Pool) mergeLocked(batch []domain.Question) int {
	added := 0
	for _, q := range batch {
		if q.ID == "" {
			continue
		}
		text := q.NormalizedText()
		if _, dup := p.ids[q.ID]; dup {
			continue
		}
		if _, dup := p.texts[text]; dup {
			continue
		}
		if q.Category == "" {
			q.Category = p.category
		}
		p.ids[q.ID] = struct{}{}
		p.texts[text] = struct{}{}
		p.available = append(p.available, q)
		added++
	}
	return added
}

// assignSyntheticIDs gives bulk-loaded questions "{category}-{index}" ids when the
// source left them empty or repeated them.
func assignSyntheticIDs(category domain.Category, batch []domain.Question) []domain.Question {
	seen := make(map[string]struct{}, len(batch))
	for _, q := range batch {
		if q.ID != "" {
			seen[q.ID] = struct{}{}
		}
	}

	taken := make(map[string]struct{}, len(batch))
	out := make([]domain.Question, len(batch))
	for i, q := range batch {
		if _, dup := taken[q.ID]; q.ID == "" || dup {
			q.ID = freeSyntheticID(category, i, seen)
			seen[q.ID] = struct{}{}
		}
		taken[q.ID] = struct{}{}
		out[i] = q
	}
	return out
}

// freeSyntheticID returns "{category}-{index}", suffixed until it is not in seen.
func freeSyntheticID(category domain.Category, index int, seen map[string]struct{}) string {
	id := fmt.Sprintf("%s-%d", category, index)
	for n := 1; ; n++ {
		if _, ok := seen[id]; !ok {
			return id
		}
		id = fmt.Sprintf("%s-%d-%d", category, index, n)
	}
}

// PoolStats is a point-in-time view of the pool.
type PoolStats struct {
	Available int `json:"available"`
	Used      int `json:"used"`
	Resets    int `json:"resets"`
}

// Stats reports pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{Available: len(p.available), Used: len(p.used), Resets: p.resets}
}

// Used reports whether id was shown since the last reset.
func (p *Pool) Used(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.used[id]
	return ok
}
