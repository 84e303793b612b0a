package memory

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pandit-quiz-service/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticLoader(map[domain.Category][]domain.Question{
			domain.CategoryTennis: sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)

	if _, err := repo.FetchAll(context.Background(), domain.CategoryTennis); err != nil {
		t.Fatalf("fetch all: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected loader once, got %d", loader.count())
	}

	if _, err := repo.FetchRandom(context.Background(), domain.CategoryTennis, 2, nil); err != nil {
		t.Fatalf("fetch random: %v", err)
	}
	if loader.count() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.count())
	}
}

func TestQuestionRepositoryExpires(t *testing.T) {
	loader := &countingLoader{
		QuestionLoader: NewStaticLoader(map[domain.Category][]domain.Question{
			domain.CategoryTennis: sampleQuestions(),
		}),
	}
	repo := NewQuestionRepository(loader, time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.clock = func() time.Time { return now }

	_, err := repo.FetchAll(context.Background(), domain.CategoryTennis)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = repo.FetchAll(context.Background(), domain.CategoryTennis)
	require.NoError(t, err)
	assert.Equal(t, 2, loader.count())
}

func TestQuestionRepositoryUnknownCategory(t *testing.T) {
	repo := NewQuestionRepository(NewStaticLoader(nil), time.Minute)

	_, err := repo.FetchRandom(context.Background(), domain.CategorySoccer, 5, nil)
	require.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestFetchRandomHonoursExclude(t *testing.T) {
	repo := NewQuestionRepository(NewStaticLoader(map[domain.Category][]domain.Question{
		domain.CategoryTennis: sampleQuestions(),
	}), time.Minute)

	exclude := map[string]struct{}{"t1": {}, "t2": {}}
	got, err := repo.FetchRandom(context.Background(), domain.CategoryTennis, 10, exclude)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, q := range got {
		assert.NotContains(t, exclude, q.ID)
	}
}

func TestSampleWithoutReplacement(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	questions := sampleQuestions()

	got := Sample(questions, 3, nil, rnd)
	require.Len(t, got, 3)
	ids := map[string]struct{}{}
	for _, q := range got {
		ids[q.ID] = struct{}{}
	}
	assert.Len(t, ids, 3)

	assert.Len(t, Sample(questions, 0, nil, rnd), len(questions))
	assert.Empty(t, Sample(nil, 5, nil, rnd))
	assert.Len(t, questions, 4, "input is not modified in length")
}

func TestLoadBundleDir(t *testing.T) {
	dir := t.TempDir()
	bundle := `[
		{"question": "Grand slam on clay?", "answer": "Roland Garros", "hint": "Paris"},
		{"id": "custom", "question": "Zero points?", "answer": "Love"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tennis_quiz_questions.json"), []byte(bundle), 0o600))

	bundles, err := LoadBundleDir(dir)
	require.NoError(t, err)
	require.Len(t, bundles, 1)

	tennis := bundles[domain.CategoryTennis]
	require.Len(t, tennis, 2)
	assert.Equal(t, "tennis-0", tennis[0].ID)
	assert.Equal(t, "Roland Garros", tennis[0].Answer)
	assert.Equal(t, "Paris", tennis[0].Hint)
	assert.Equal(t, domain.CategoryTennis, tennis[0].Category)
	assert.Equal(t, "custom", tennis[1].ID)
	assert.Empty(t, tennis[1].Hint)
}

func TestLoadBundleDirRejectsBadJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, BundleFile(domain.CategoryCricket)), []byte("{"), 0o600))

	_, err := LoadBundleDir(dir)
	assert.Error(t, err)
}

type countingLoader struct {
	QuestionLoader
	mu    sync.Mutex
	calls int
}

func (l *countingLoader) LoadCategory(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	return l.QuestionLoader.LoadCategory(ctx, category)
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{ID: "t1", Category: domain.CategoryTennis, Text: "Serve not returned?", Answer: "Ace", Hint: "A card"},
		{ID: "t2", Category: domain.CategoryTennis, Text: "Zero points?", Answer: "Love"},
		{ID: "t3", Category: domain.CategoryTennis, Text: "Tie at 40?", Answer: "Deuce"},
		{ID: "t4", Category: domain.CategoryTennis, Text: "Grass slam?", Answer: "Wimbledon"},
	}
}
