package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"pandit-quiz-service/internal/domain"
)

type profileModel struct {
	bun.BaseModel `bun:"table:user_profiles,alias:up"`

	UserID             string     `bun:"user_id,pk"`
	Nickname           string     `bun:"nickname,notnull"`
	Email              string     `bun:"email,nullzero"`
	Provider           string     `bun:"provider,nullzero"`
	NeedsNicknameSetup bool       `bun:"needs_nickname_setup,notnull"`
	HighestScore       int        `bun:"highest_score,notnull"`
	TotalGamesPlayed   int        `bun:"total_games_played,notnull"`
	TotalCorrect       int        `bun:"total_correct,notnull"`
	CreatedAt          time.Time  `bun:"created_at,notnull"`
	LastPlayedAt       *time.Time `bun:"last_played_at"`
}

type resultModel struct {
	bun.BaseModel `bun:"table:quiz_results,alias:qr"`

	ID                string    `bun:"id,pk"`
	UserID            string    `bun:"user_id,notnull"`
	Category          string    `bun:"category,notnull"`
	Score             int       `bun:"score,notnull"`
	Correct           int       `bun:"correct,notnull"`
	Incorrect         int       `bun:"incorrect,notnull"`
	Hints             int       `bun:"hints,notnull"`
	QuestionsAnswered int       `bun:"questions_answered,notnull"`
	PlayedAt          time.Time `bun:"played_at,notnull"`
}

// ResultStore keeps profiles and quiz history in Postgres through bun.
type ResultStore struct {
	db *bun.DB
}

func NewResultStore(db *bun.DB) *ResultStore {
	return &ResultStore{db: db}
}

func (s *ResultStore) EnsureProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	m := profileFromDomain(p)
	if _, err := s.db.NewInsert().Model(&m).On("CONFLICT (user_id) DO NOTHING").Exec(ctx); err != nil {
		return domain.UserProfile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetProfile(ctx, p.UserID)
}

func (s *ResultStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var m profileModel
	err := s.db.NewSelect().Model(&m).Where("user_id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return m.toDomain(), nil
}

func (s *ResultStore) UpdateNickname(ctx context.Context, userID, nickname string) error {
	res, err := s.db.NewUpdate().
		Model((*profileModel)(nil)).
		Set("nickname = ?", nickname).
		Set("needs_nickname_setup = FALSE").
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update nickname: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// SaveResult upserts the profile aggregates and appends the result in one transaction.
// The aggregate update is a single statement, so concurrent saves for a user cannot lose games.
func (s *ResultStore) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (domain.UserProfile, error) {
	playedAt := result.Timestamp
	profile := profileModel{
		UserID:             userID,
		NeedsNicknameSetup: true,
		HighestScore:       result.Score,
		TotalGamesPlayed:   1,
		TotalCorrect:       result.Correct,
		CreatedAt:          playedAt,
		LastPlayedAt:       &playedAt,
	}
	row := resultFromDomain(userID, result)

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := upsertProfileQuery(tx, &profile).Exec(ctx); err != nil {
			return fmt.Errorf("upsert profile: %w", err)
		}
		if _, err := tx.NewInsert().Model(&row).Exec(ctx); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.UserProfile{}, err
	}
	return profile.toDomain(), nil
}

func (s *ResultStore) History(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	var rows []resultModel
	if err := historyQuery(s.db, &rows, userID, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	out := make([]domain.QuizResult, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *ResultStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	var rows []profileModel
	if err := leaderboardQuery(s.db, &rows, limit).Scan(ctx); err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]domain.LeaderboardEntry, 0, len(rows))
	for _, p := range rows {
		out = append(out, p.toEntry())
	}
	return out, nil
}

// upsertProfileQuery adds one game to the profile, creating it on first play.
// highest_score only grows.
func upsertProfileQuery(db bun.IDB, profile *profileModel) *bun.InsertQuery {
	return db.NewInsert().
		Model(profile).
		On("CONFLICT (user_id) DO UPDATE").
		Set("highest_score = GREATEST(up.highest_score, EXCLUDED.highest_score)").
		Set("total_games_played = up.total_games_played + 1").
		Set("total_correct = up.total_correct + EXCLUDED.total_correct").
		Set("last_played_at = EXCLUDED.last_played_at").
		Returning("*")
}

func historyQuery(db bun.IDB, rows *[]resultModel, userID string, limit int) *bun.SelectQuery {
	q := db.NewSelect().Model(rows).Where("user_id = ?", userID).Order("played_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func leaderboardQuery(db bun.IDB, rows *[]profileModel, limit int) *bun.SelectQuery {
	q := db.NewSelect().
		Model(rows).
		Where("highest_score > 0").
		OrderExpr("highest_score DESC, user_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func profileFromDomain(p domain.UserProfile) profileModel {
	return profileModel{
		UserID:             p.UserID,
		Nickname:           p.Nickname,
		Email:              p.Email,
		Provider:           string(p.Provider),
		NeedsNicknameSetup: p.NeedsNicknameSetup,
		HighestScore:       p.HighestScore,
		TotalGamesPlayed:   p.TotalGamesPlayed,
		TotalCorrect:       p.TotalCorrect,
		CreatedAt:          p.CreatedAt,
		LastPlayedAt:       p.LastPlayedAt,
	}
}

func (m profileModel) toDomain() domain.UserProfile {
	return domain.UserProfile{
		UserID:             m.UserID,
		Nickname:           m.Nickname,
		Email:              m.Email,
		Provider:           domain.Provider(m.Provider),
		NeedsNicknameSetup: m.NeedsNicknameSetup,
		HighestScore:       m.HighestScore,
		TotalGamesPlayed:   m.TotalGamesPlayed,
		TotalCorrect:       m.TotalCorrect,
		CreatedAt:          m.CreatedAt,
		LastPlayedAt:       m.LastPlayedAt,
	}
}

func (m profileModel) toEntry() domain.LeaderboardEntry {
	nickname := m.Nickname
	if nickname == "" {
		nickname = "Anonymous Player"
	}
	return domain.LeaderboardEntry{
		UserID:           m.UserID,
		Nickname:         nickname,
		HighestScore:     m.HighestScore,
		TotalGamesPlayed: m.TotalGamesPlayed,
	}
}

func resultFromDomain(userID string, r domain.QuizResult) resultModel {
	return resultModel{
		ID:                r.ID,
		UserID:            userID,
		Category:          string(r.Category),
		Score:             r.Score,
		Correct:           r.Correct,
		Incorrect:         r.Incorrect,
		Hints:             r.Hints,
		QuestionsAnswered: r.QuestionsAnswered,
		PlayedAt:          r.Timestamp,
	}
}

func (m resultModel) toDomain() domain.QuizResult {
	return domain.QuizResult{
		ID:                m.ID,
		UserID:            m.UserID,
		Category:          domain.Category(m.Category),
		Score:             m.Score,
		Correct:           m.Correct,
		Incorrect:         m.Incorrect,
		Hints:             m.Hints,
		QuestionsAnswered: m.QuestionsAnswered,
		Timestamp:         m.PlayedAt,
	}
}
