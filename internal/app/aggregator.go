package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/title"
)

// ResultStore persists finished sessions and the lifetime stats derived from them.
type ResultStore interface {
	// SaveResult appends result to the user's history and, in the same atomic step,
	// raises highestScore to at least result.Score, increments totalGamesPlayed and adds
	// result.Correct to the lifetime correct count. It returns the updated profile.
	SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.UserProfile, error)
}

// LeaderboardIndex is an optional fast index of best scores.
type LeaderboardIndex interface {
	Record(ctx context.Context, userID string, highestScore int) error
	Top(ctx context.Context, limit int) ([]string, error)
}

// FinalizeSession turns a session snapshot into its immutable result record.
func FinalizeSession(v View, id string, at time.Time) domain.QuizResult {
	return domain.QuizResult{
		ID:                id,
		UserID:            v.UserID,
		Category:          v.Category,
		Score:             v.Score,
		Correct:           v.Stats.Correct,
		Incorrect:         v.Stats.Incorrect,
		Hints:             v.Stats.Hints,
		QuestionsAnswered: v.Stats.Answered(),
		Timestamp:         at,
	}
}

// Aggregator persists results at the boundary where storage failures stop propagating.
type Aggregator struct {
	store       ResultStore
	leaderboard LeaderboardIndex
	log         logrus.FieldLogger
}

// NewAggregator builds an aggregator. leaderboard may be nil.
func NewAggregator(store ResultStore, leaderboard LeaderboardIndex, log logrus.FieldLogger) *Aggregator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Aggregator{store: store, leaderboard: leaderboard, log: log}
}

// Persist stores result for userID. Guests without a uid are skipped; storage errors are
// logged and reported through Summary.Saved, never returned.
func (a *Aggregator) Persist(ctx context.Context, userID string, result domain.QuizResult) Summary {
	sum := Summary{Result: result}
	if userID == "" || a.store == nil {
		return sum
	}
	log := a.log.WithFields(logrus.Fields{"user_id": userID, "result_id": result.ID})

	profile, err := a.store.SaveResult(ctx, userID, result)
	if err != nil {
		log.WithError(err).Warn("failed to persist quiz result")
		return sum
	}
	sum.Saved = true

	change := title.Compare(profile.TotalCorrect-result.Correct, profile.TotalCorrect)
	sum.Title = &change
	if change.Progressed {
		log.WithField("title", change.Current.ID).Info("title unlocked")
	}

	if a.leaderboard != nil {
		if err := a.leaderboard.Record(ctx, userID, profile.HighestScore); err != nil {
			log.WithError(err).Warn("failed to update leaderboard index")
		}
	}
	return sum
}
