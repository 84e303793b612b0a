package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"pandit-quiz-service/internal/domain"
)

// QuestionLoader reads question rows from Postgres.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

// LoadCategory returns every question of category.
func (l *QuestionLoader) LoadCategory(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id, category, question, answer, hint FROM questions WHERE category=$1 ORDER BY id`,
		string(category))
	if err != nil {
		return nil, fmt.Errorf("load category: %w", err)
	}
	return scanQuestions(rows)
}

// FetchAll is LoadCategory under the question-source name.
func (l *QuestionLoader) FetchAll(ctx context.Context, category domain.Category) ([]domain.Question, error) {
	return l.LoadCategory(ctx, category)
}

// FetchRandom lets Postgres pick count random questions outside exclude.
func (l *QuestionLoader) FetchRandom(ctx context.Context, category domain.Category, count int, exclude map[string]struct{}) ([]domain.Question, error) {
	ids := make([]string, 0, len(exclude))
	for id := range exclude {
		ids = append(ids, id)
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, category, question, answer, hint FROM questions
		 WHERE category=$1 AND id <> ALL($3)
		 ORDER BY random() LIMIT $2`,
		string(category), count, ids)
	if err != nil {
		return nil, fmt.Errorf("fetch random questions: %w", err)
	}
	return scanQuestions(rows)
}

// Seed upserts questions in one batch and returns how many rows were written.
func (l *QuestionLoader) Seed(ctx context.Context, questions []domain.Question) (int, error) {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(
			`INSERT INTO questions (id, category, question, answer, hint) VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET category=EXCLUDED.category, question=EXCLUDED.question,
			 answer=EXCLUDED.answer, hint=EXCLUDED.hint`,
			q.ID, string(q.Category), q.Text, q.Answer, q.Hint)
	}
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range questions {
		if _, err := results.Exec(); err != nil {
			return written, fmt.Errorf("seed questions: %w", err)
		}
		written++
	}
	return written, nil
}

func scanQuestions(rows pgx.Rows) ([]domain.Question, error) {
	defer rows.Close()
	var out []domain.Question
	for rows.Next() {
		var (
			q        domain.Question
			category string
		)
		if err := rows.Scan(&q.ID, &category, &q.Text, &q.Answer, &q.Hint); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Category = domain.Category(category)
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return out, nil
}
