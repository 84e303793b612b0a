package memory

import (
	"context"
	"sort"
	"sync"

	"pandit-quiz-service/internal/domain"
)

// ProfileStore keeps profiles and quiz history in process. It serves local runs and tests.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
	results  map[string][]domain.QuizResult
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{
		profiles: make(map[string]domain.UserProfile),
		results:  make(map[string][]domain.QuizResult),
	}
}

func (s *ProfileStore) EnsureProfile(_ context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.profiles[p.UserID]; ok {
		return existing, nil
	}
	s.profiles[p.UserID] = p
	return p, nil
}

func (s *ProfileStore) GetProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	return p, nil
}

func (s *ProfileStore) UpdateNickname(_ context.Context, userID, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.ErrProfileNotFound
	}
	p.Nickname = nickname
	p.NeedsNicknameSetup = false
	s.profiles[userID] = p
	return nil
}

// SaveResult appends the result and folds it into the profile under one lock.
func (s *ProfileStore) SaveResult(_ context.Context, userID string, result domain.QuizResult) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[userID]
	if !ok {
		p = domain.UserProfile{UserID: userID, NeedsNicknameSetup: true, CreatedAt: result.Timestamp}
	}
	if result.Score > p.HighestScore {
		p.HighestScore = result.Score
	}
	p.TotalGamesPlayed++
	p.TotalCorrect += result.Correct
	playedAt := result.Timestamp
	p.LastPlayedAt = &playedAt

	result.UserID = userID
	s.profiles[userID] = p
	s.results[userID] = append(s.results[userID], result)
	return p, nil
}

func (s *ProfileStore) History(_ context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	s.mu.RLock()
	all := make([]domain.QuizResult, len(s.results[userID]))
	copy(all, s.results[userID])
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *ProfileStore) Leaderboard(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	s.mu.RLock()
	entries := make([]domain.LeaderboardEntry, 0, len(s.profiles))
	for _, p := range s.profiles {
		if p.HighestScore <= 0 {
			continue
		}
		nickname := p.Nickname
		if nickname == "" {
			nickname = "Anonymous Player"
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           p.UserID,
			Nickname:         nickname,
			HighestScore:     p.HighestScore,
			TotalGamesPlayed: p.TotalGamesPlayed,
		})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].HighestScore != entries[j].HighestScore {
			return entries[i].HighestScore > entries[j].HighestScore
		}
		return entries[i].UserID < entries[j].UserID
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
