package memory

import (
	"context"
	"testing"

	"pandit-quiz-service/internal/app"
	"pandit-quiz-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	store := NewSessionStore()
	pool := app.InitializePool(context.Background(), domain.CategoryTennis, NewQuestionRepository(NewStaticLoader(map[domain.Category][]domain.Question{
		domain.CategoryTennis: sampleQuestions(),
	}), 0), nil, app.PoolConfig{}, nil)
	session := app.NewSession("sess-1", domain.User{}, domain.CategoryTennis, pool, app.SessionConfig{})

	store.Put(session)
	got, ok := store.Get("sess-1")
	if !ok || got != session {
		t.Fatalf("expected session present")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one session, got %d", store.Len())
	}

	store.Delete("sess-1")
	if _, ok := store.Get("sess-1"); ok {
		t.Fatalf("expected session removed")
	}
}
