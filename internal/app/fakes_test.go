package app

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pandit-quiz-service/internal/domain"
)

// firstPick always selects the first candidate.
type firstPick struct{}

func (firstPick) Intn(int) int { return 0 }

type fakeSource struct {
	mu          sync.Mutex
	questions   []domain.Question
	err         error
	randomCalls int
	allCalls    int
	excludes    []map[string]struct{}
}

func (f *fakeSource) FetchRandom(_ context.Context, _ domain.Category, count int, exclude map[string]struct{}) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.randomCalls++
	f.excludes = append(f.excludes, exclude)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Question, 0, count)
	for _, q := range f.questions {
		if _, skip := exclude[q.ID]; skip {
			continue
		}
		if len(out) == count {
			break
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeSource) FetchAll(_ context.Context, _ domain.Category) ([]domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allCalls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.Question, len(f.questions))
	copy(out, f.questions)
	return out, nil
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeSource) calls() (random, all int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.randomCalls, f.allCalls
}

func makeQuestions(category domain.Category, n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, domain.Question{
			ID:       fmt.Sprintf("q%d", i),
			Category: category,
			Text:     fmt.Sprintf("Question %d?", i),
			Answer:   fmt.Sprintf("Answer %d", i),
			Hint:     fmt.Sprintf("Hint %d", i),
		})
	}
	return out
}

type fakeProfiles struct {
	mu       sync.Mutex
	profiles map[string]domain.UserProfile
	results  map[string][]domain.QuizResult
	saveErr  error
	saves    int
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		profiles: make(map[string]domain.UserProfile),
		results:  make(map[string][]domain.QuizResult),
	}
}

func (f *fakeProfiles) SaveResult(_ context.Context, userID string, result domain.QuizResult) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return domain.UserProfile{}, f.saveErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		p = domain.UserProfile{UserID: userID, NeedsNicknameSetup: true, CreatedAt: result.Timestamp}
	}
	if result.Score > p.HighestScore {
		p.HighestScore = result.Score
	}
	p.TotalGamesPlayed++
	p.TotalCorrect += result.Correct
	at := result.Timestamp
	p.LastPlayedAt = &at
	f.profiles[userID] = p
	f.results[userID] = append(f.results[userID], result)
	return p, nil
}

func (f *fakeProfiles) EnsureProfile(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.profiles[p.UserID]; ok {
		return existing, nil
	}
	f.profiles[p.UserID] = p
	return p, nil
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (f *fakeProfiles) UpdateNickname(_ context.Context, userID, nickname string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Nickname = nickname
	p.NeedsNicknameSetup = false
	f.profiles[userID] = p
	return nil
}

func (f *fakeProfiles) History(_ context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.results[userID]
	out := make([]domain.QuizResult, 0, len(all))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (f *fakeProfiles) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.LeaderboardEntry, 0, len(f.profiles))
	for _, p := range f.profiles {
		if p.HighestScore <= 0 {
			continue
		}
		out = append(out, domain.LeaderboardEntry{UserID: p.UserID, Nickname: displayNickname(p.Nickname), HighestScore: p.HighestScore, TotalGamesPlayed: p.TotalGamesPlayed})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].HighestScore > out[j].HighestScore })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProfiles) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

type fakeIndex struct {
	mu     sync.Mutex
	scores map[string]int
	top    []string
	err    error
}

func (f *fakeIndex) Record(_ context.Context, userID string, highestScore int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scores == nil {
		f.scores = make(map[string]int)
	}
	if _, known := f.scores[userID]; !known {
		f.top = append(f.top, userID)
	}
	f.scores[userID] = highestScore
	return nil
}

func (f *fakeIndex) Top(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.top) > limit {
		return f.top[:limit], nil
	}
	return f.top, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: make(map[string]*Session)}
}

func (f *fakeSessions) Put(s *Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID()] = s
}

func (f *fakeSessions) Get(id string) (*Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	return s, ok
}

func (f *fakeSessions) Delete(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
}

func fixedClock() func() time.Time {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
