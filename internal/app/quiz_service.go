package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/title"
)

// SessionRepository abstracts where live sessions are kept (in-memory, Redis-marked, etc).
type SessionRepository interface {
	Put(session *Session)
	Get(sessionID string) (*Session, bool)
	Delete(sessionID string)
}

// ProfileStore is the document store for profiles and quiz history.
type ProfileStore interface {
	ResultStore
	// EnsureProfile inserts p unless a profile for p.UserID exists, and returns the stored one.
	EnsureProfile(ctx context.Context, p domain.UserProfile) (domain.UserProfile, error)
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	UpdateNickname(ctx context.Context, userID, nickname string) error
	// History returns the newest results first.
	History(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error)
	// Leaderboard returns players with a positive best score, best first.
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// Settings are the service-wide knobs.
type Settings struct {
	Pool             PoolConfig
	Session          SessionConfig
	HistoryLimit     int
	LeaderboardLimit int
	PersistTimeout   time.Duration
}

// QuizService contains the quiz use cases.
type QuizService struct {
	sessions    SessionRepository
	questions   QuestionSource
	profiles    ProfileStore
	aggregator  *Aggregator
	leaderboard LeaderboardIndex
	settings    Settings
	rnd         RandomSource
	now         func() time.Time
	newID       func() string
	log         logrus.FieldLogger
}

// Option customizes a QuizService.
type Option func(*QuizService)

// WithSettings overrides the default settings.
func WithSettings(settings Settings) Option {
	return func(s *QuizService) { s.settings = settings }
}

// WithLeaderboardIndex adds a fast best-score index.
func WithLeaderboardIndex(index LeaderboardIndex) Option {
	return func(s *QuizService) { s.leaderboard = index }
}

// WithRandom injects the question picker randomness.
func WithRandom(rnd RandomSource) Option {
	return func(s *QuizService) { s.rnd = rnd }
}

// WithServiceClock injects the clock used for result timestamps.
func WithServiceClock(now func() time.Time) Option {
	return func(s *QuizService) { s.now = now }
}

// WithIDGenerator injects the session/result id generator.
func WithIDGenerator(next func() string) Option {
	return func(s *QuizService) { s.newID = next }
}

// WithLogger sets the service logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *QuizService) { s.log = log }
}

func NewQuizService(sessions SessionRepository, questions QuestionSource, profiles ProfileStore, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  sessions,
		questions: questions,
		profiles:  profiles,
		rnd:       globalRand{},
		now:       time.Now,
		newID:     uuid.NewString,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.settings.HistoryLimit <= 0 {
		s.settings.HistoryLimit = 10
	}
	if s.settings.LeaderboardLimit <= 0 {
		s.settings.LeaderboardLimit = 10
	}
	if s.settings.PersistTimeout <= 0 {
		s.settings.PersistTimeout = 10 * time.Second
	}
	var store ResultStore
	if profiles != nil {
		store = profiles
	}
	s.aggregator = NewAggregator(store, s.leaderboard, s.log)
	return s
}

// Start opens a session for user in category and draws its first question.
// user.UID may be empty; such sessions are played but never persisted.
func (s *QuizService) Start(ctx context.Context, user domain.User, rawCategory string) (View, error) {
	category, err := domain.ParseCategory(rawCategory)
	if err != nil {
		return View{}, err
	}

	id := s.newID()
	log := s.log.WithFields(logrus.Fields{"session_id": id, "user_id": user.UID, "category": category})
	pool := InitializePool(ctx, category, s.questions, s.rnd, s.settings.Pool, log)

	session := NewSession(id, user, category, pool, s.settings.Session,
		WithClock(s.now),
		WithResultID(s.newID),
		WithSessionLogger(log),
		WithFinishHook(func(result domain.QuizResult) Summary {
			persistCtx, cancel := context.WithTimeout(context.Background(), s.settings.PersistTimeout)
			defer cancel()
			return s.aggregator.Persist(persistCtx, user.UID, result)
		}),
	)
	s.sessions.Put(session)

	view, err := session.Start(ctx)
	if err != nil {
		return view, err
	}
	log.WithField("state", view.State).Info("quiz session started")
	return view, nil
}

func (s *QuizService) session(sessionID string) (*Session, error) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SubmitAnswer evaluates an answer for the current question.
func (s *QuizService) SubmitAnswer(_ context.Context, sessionID, answer string) (AnswerOutcome, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return AnswerOutcome{}, err
	}
	return session.SubmitAnswer(answer)
}

// RequestHint reveals the current hint.
func (s *QuizService) RequestHint(_ context.Context, sessionID string) (string, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return "", err
	}
	return session.RequestHint()
}

// Advance moves to the next question.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (View, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.Advance(ctx)
}

// Finish ends a session early and returns its summary.
func (s *QuizService) Finish(_ context.Context, sessionID string) (Summary, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return Summary{}, err
	}
	return session.Finish()
}

// View returns the current snapshot of a session.
func (s *QuizService) View(_ context.Context, sessionID string) (View, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return View{}, err
	}
	return session.View(), nil
}

// Subscribe returns a channel that receives session snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan View, func(), error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Abandon discards a session. Unfinished sessions produce no result.
func (s *QuizService) Abandon(_ context.Context, sessionID string) {
	session, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	if session.State() != StateFinished {
		s.log.WithField("session_id", sessionID).Info("quiz session abandoned")
	}
	session.Close()
	s.sessions.Delete(sessionID)
}

// EnsureProfile creates the profile on first sign-in and returns the stored one.
func (s *QuizService) EnsureProfile(ctx context.Context, user domain.User, provider domain.Provider, nickname, email string) (domain.UserProfile, error) {
	if user.UID == "" {
		return domain.UserProfile{}, domain.ErrMissingUserID
	}
	if provider == "" && user.IsAnonymous {
		provider = domain.ProviderAnonymous
	}
	return s.profiles.EnsureProfile(ctx, domain.NewProfile(user.UID, provider, nickname, email, s.now()))
}

// Profile returns the stored profile of userID.
func (s *QuizService) Profile(ctx context.Context, userID string) (domain.UserProfile, error) {
	if userID == "" {
		return domain.UserProfile{}, domain.ErrMissingUserID
	}
	return s.profiles.GetProfile(ctx, userID)
}

// UpdateNickname validates and stores a nickname, clearing the setup flag.
func (s *QuizService) UpdateNickname(ctx context.Context, userID, nickname string) error {
	if userID == "" {
		return domain.ErrMissingUserID
	}
	clean, err := domain.ValidateNickname(nickname)
	if err != nil {
		return err
	}
	return s.profiles.UpdateNickname(ctx, userID, clean)
}

// History returns the latest results of userID, newest first.
func (s *QuizService) History(ctx context.Context, userID string, limit int) ([]domain.QuizResult, error) {
	if userID == "" {
		return nil, domain.ErrMissingUserID
	}
	if limit <= 0 {
		limit = s.settings.HistoryLimit
	}
	return s.profiles.History(ctx, userID, limit)
}

// Leaderboard returns the best players by highest score. The index is preferred when
// configured; an index failure falls back to the store, and a short index result is
// checked against the store and backfilled, so a flushed or newly added index recovers.
func (s *QuizService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.settings.LeaderboardLimit
	}
	if s.leaderboard == nil {
		return s.profiles.Leaderboard(ctx, limit)
	}

	entries, err := s.leaderboardFromIndex(ctx, limit)
	if err != nil {
		s.log.WithError(err).Warn("leaderboard index unavailable, reading store")
		return s.profiles.Leaderboard(ctx, limit)
	}
	if len(entries) >= limit {
		return entries, nil
	}

	stored, err := s.profiles.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(stored) <= len(entries) {
		return entries, nil
	}
	s.log.WithFields(logrus.Fields{"indexed": len(entries), "stored": len(stored)}).Info("leaderboard index behind store, backfilling")
	for _, e := range stored {
		if err := s.leaderboard.Record(ctx, e.UserID, e.HighestScore); err != nil {
			s.log.WithError(err).WithField("user_id", e.UserID).Warn("leaderboard backfill failed")
			break
		}
	}
	return stored, nil
}

func (s *QuizService) leaderboardFromIndex(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	ids, err := s.leaderboard.Top(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		p, err := s.profiles.GetProfile(ctx, id)
		if errors.Is(err, domain.ErrProfileNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p.HighestScore <= 0 {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			UserID:           p.UserID,
			Nickname:         displayNickname(p.Nickname),
			HighestScore:     p.HighestScore,
			TotalGamesPlayed: p.TotalGamesPlayed,
		})
	}
	return entries, nil
}

func displayNickname(nickname string) string {
	if nickname == "" {
		return "Anonymous Player"
	}
	return nickname
}

// TitleReport is the title progression of one user.
type TitleReport struct {
	TotalCorrect int            `json:"totalCorrectLifetime"`
	Progress     title.Progress `json:"progress"`
	Display      string         `json:"display"`
	Motivation   string         `json:"motivation"`
	Unlocks      []title.Unlock `json:"titles"`
}

// TitleProgress reports the title progression of userID. Users without a profile start at zero.
func (s *QuizService) TitleProgress(ctx context.Context, userID string) (TitleReport, error) {
	if userID == "" {
		return TitleReport{}, domain.ErrMissingUserID
	}
	total := 0
	p, err := s.profiles.GetProfile(ctx, userID)
	switch {
	case err == nil:
		total = p.TotalCorrect
	case errors.Is(err, domain.ErrProfileNotFound):
	default:
		return TitleReport{}, err
	}
	progress := title.ProgressFor(total)
	return TitleReport{
		TotalCorrect: total,
		Progress:     progress,
		Display:      title.Format(progress.Current, true),
		Motivation:   title.Motivation(progress),
		Unlocks:      title.Unlocks(total),
	}, nil
}
