package domain

import (
	"strings"
	"time"
)

// Question is a single free-text trivia question.
type Question struct {
	ID       string   `json:"id"`
	Category Category `json:"category"`
	Text     string   `json:"question"`
	Answer   string   `json:"answer"`
	Hint     string   `json:"hint,omitempty"`
}

// NormalizedText is the key used to deduplicate questions within a pool.
func (q Question) NormalizedText() string {
	return Normalize(q.Text)
}

// Normalize trims and lower-cases free text for comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// AnswerStatus is the evaluation state of the current question.
type AnswerStatus string

const (
	AnswerUnanswered AnswerStatus = "unanswered"
	AnswerCorrect    AnswerStatus = "correct"
	AnswerIncorrect  AnswerStatus = "incorrect"
)

// SessionStats are the per-session counters.
type SessionStats struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Hints     int `json:"hints"`
}

// Answered is the number of evaluated answers.
func (s SessionStats) Answered() int {
	return s.Correct + s.Incorrect
}

// QuizResult is the immutable record of one finished session.
type QuizResult struct {
	ID                string    `json:"id"`
	UserID            string    `json:"userId,omitempty"`
	Category          Category  `json:"category"`
	Score             int       `json:"score"`
	Correct           int       `json:"correct"`
	Incorrect         int       `json:"incorrect"`
	Hints             int       `json:"hints"`
	QuestionsAnswered int       `json:"questionsAnswered"`
	Timestamp         time.Time `json:"timestamp"`
}

// User is the identity supplied by the authentication provider.
// UID is empty for guests that were never assigned an identity.
type User struct {
	UID         string `json:"uid"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// Provider identifies how a user signed in.
type Provider string

const (
	ProviderGoogle    Provider = "google"
	ProviderEmail     Provider = "email"
	ProviderAnonymous Provider = "anonymous"
)

// UserProfile holds the lifetime stats of a user.
type UserProfile struct {
	UserID             string     `json:"userId"`
	Nickname           string     `json:"nickname"`
	Email              string     `json:"email,omitempty"`
	Provider           Provider   `json:"provider,omitempty"`
	NeedsNicknameSetup bool       `json:"needsNicknameSetup"`
	HighestScore       int        `json:"highestScore"`
	TotalGamesPlayed   int        `json:"totalGamesPlayed"`
	TotalCorrect       int        `json:"totalCorrectLifetime"`
	CreatedAt          time.Time  `json:"createdAt"`
	LastPlayedAt       *time.Time `json:"lastPlayedAt,omitempty"`
}

// LeaderboardEntry is one row of the highest-score leaderboard.
type LeaderboardEntry struct {
	UserID           string `json:"userId"`
	Nickname         string `json:"nickname"`
	HighestScore     int    `json:"highestScore"`
	TotalGamesPlayed int    `json:"totalGamesPlayed"`
}
