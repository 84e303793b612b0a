// Package sqlite keeps profiles and quiz history in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pandit-quiz-service/internal/domain"

	_ "modernc.org/sqlite" // SQLite driver.
)

// ProfileStore is the single-node profile and history store.
type ProfileStore struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*ProfileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer keeps SQLITE_BUSY away from concurrent saves
	db.SetMaxOpenConns(1)

	store := &ProfileStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

func (s *ProfileStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id TEXT PRIMARY KEY,
			nickname TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL DEFAULT '',
			needs_nickname_setup INTEGER NOT NULL DEFAULT 0,
			highest_score INTEGER NOT NULL DEFAULT 0,
			total_games_played INTEGER NOT NULL DEFAULT 0,
			total_correct INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_played_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS quiz_results (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			category TEXT NOT NULL,
			score INTEGER NOT NULL,
			correct INTEGER NOT NULL,
			incorrect INTEGER NOT NULL,
			hints INTEGER NOT NULL,
			questions_answered INTEGER NOT NULL,
			played_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_quiz_results_user_played ON quiz_results(user_id, played_at);`,
		`CREATE INDEX IF NOT EXISTS idx_user_profiles_highest ON user_profiles(highest_score);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

const profileColumns = `user_id, nickname, email, provider, needs_nickname_setup, highest_score,
	total_games_played, total_correct, created_at, last_played_at`

func (s *ProfileStore) EnsureProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		p.UserID, p.Nickname, p.Email, string(p.Provider), p.NeedsNicknameSetup,
		p.HighestScore, p.TotalGamesPlayed, p.TotalCorrect,
		formatTime(p.CreatedAt), formatTimePtr(p.LastPlayedAt),
	)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetProfile(ctx, p.UserID)
}

func (s *ProfileStore) GetProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM user_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStore) UpdateNickname(ctx context.Context, userID, nickname string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profiles SET nickname = ?, needs_nickname_setup = 0 WHERE user_id = ?`,
		nickname, userID)
	if err != nil {
		return fmt.Errorf("update nickname: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrProfileNotFound
	}
	return nil
}

// SaveResult folds the result into the profile and appends it to history in one transaction.
func (s *ProfileStore) SaveResult(ctx context.Context, userID string, result domain.QuizResult) (p domain.UserProfile, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.UserProfile{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	playedAt := formatTime(result.Timestamp)
	row := tx.QueryRowContext(ctx,
		`INSERT INTO user_profiles (user_id, needs_nickname_setup, highest_score, total_games_played, total_correct, created_at, last_played_at)
		 VALUES (?, 1, ?, 1, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			highest_score = MAX(user_profiles.highest_score, excluded.highest_score),
			total_games_played = user_profiles.total_games_played + 1,
			total_correct = user_profiles.total_correct + excluded.total_correct,
			last_played_at = excluded.last_played_at
		 RETURNING `+profileColumns,
		userID, result.Score, result.Correct, playedAt, playedAt,
	)
	p, err = scanProfile(row)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("upsert profile: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO quiz_results (id, user_id, category, score, correct, incorrect, hints, questions_answered, played_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, userID, string(result.Category), result.Score, result.Correct,
		result.Incorrect, result.Hints, result.QuestionsAnswered, playedAt,
	)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("insert result: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.UserProfile{}, err
	}
	return p, nil
}

func (s *ProfileStore) History(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, category, score, correct, incorrect, hints, questions_answered, played_at
		 FROM quiz_results WHERE user_id = ? ORDER BY played_at DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []domain.QuizResult
	for rows.Next() {
		var (
			r        domain.QuizResult
			category string
			playedAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &category, &r.Score, &r.Correct, &r.Incorrect, &r.Hints, &r.QuestionsAnswered, &playedAt); err != nil {
			return nil, err
		}
		r.Category = domain.Category(category)
		if r.Timestamp, err = parseTime(playedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *ProfileStore) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, nickname, highest_score, total_games_played FROM user_profiles
		 WHERE highest_score > 0 ORDER BY highest_score DESC, user_id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.Nickname, &e.HighestScore, &e.TotalGamesPlayed); err != nil {
			return nil, err
		}
		if e.Nickname == "" {
			e.Nickname = "Anonymous Player"
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (domain.UserProfile, error) {
	var (
		p          domain.UserProfile
		provider   string
		createdAt  string
		lastPlayed sql.NullString
	)
	if err := row.Scan(&p.UserID, &p.Nickname, &p.Email, &provider, &p.NeedsNicknameSetup,
		&p.HighestScore, &p.TotalGamesPlayed, &p.TotalCorrect, &createdAt, &lastPlayed); err != nil {
		return domain.UserProfile{}, err
	}
	p.Provider = domain.Provider(provider)
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return domain.UserProfile{}, err
	}
	if lastPlayed.Valid {
		at, err := parseTime(lastPlayed.String)
		if err != nil {
			return domain.UserProfile{}, err
		}
		p.LastPlayedAt = &at
	}
	return p, nil
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}
