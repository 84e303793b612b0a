package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/title"
)

// PointsPerCorrect is the score awarded for each correct answer.
const PointsPerCorrect = 100

// State is the play-loop state of a session.
type State string

const (
	StateLoading        State = "loading"
	StateAwaitingAnswer State = "awaiting_answer"
	StateAnswerRevealed State = "answer_revealed"
	StateFinished       State = "finished"
)

// SessionConfig bounds a session.
type SessionConfig struct {
	// QuestionLimit ends the session after that many questions; 0 means unlimited.
	QuestionLimit int
	// AutoAdvance moves on from a revealed answer after the delay; 0 disables it.
	AutoAdvance time.Duration
}

// QuestionView is the question as shown to a player, without its answer.
type QuestionView struct {
	ID       string          `json:"id"`
	Category domain.Category `json:"category"`
	Text     string          `json:"question"`
	HasHint  bool            `json:"hasHint"`
}

// View is a snapshot of a session for transports and subscribers.
type View struct {
	ID             string              `json:"sessionId"`
	UserID         string              `json:"userId,omitempty"`
	Category       domain.Category     `json:"category"`
	State          State               `json:"state"`
	QuestionNumber int                 `json:"questionNumber"`
	Question       *QuestionView       `json:"question,omitempty"`
	Score          int                 `json:"score"`
	Stats          domain.SessionStats `json:"stats"`
	AnswerStatus   domain.AnswerStatus `json:"answerStatus"`
	Hint           string              `json:"hint,omitempty"`
	CorrectAnswer  string              `json:"correctAnswer,omitempty"`
	Summary        *Summary            `json:"summary,omitempty"`
}

// AnswerOutcome is the evaluation of one submitted answer.
type AnswerOutcome struct {
	Correct       bool                `json:"correct"`
	Awarded       int                 `json:"awarded"`
	CorrectAnswer string              `json:"correctAnswer"`
	Score         int                 `json:"score"`
	Stats         domain.SessionStats `json:"stats"`
}

// Summary is what a player sees once a session finished.
type Summary struct {
	Result domain.QuizResult `json:"result"`
	Saved  bool              `json:"saved"`
	Title  *title.Change     `json:"title,omitempty"`
}

// FinishHook receives the result exactly once when a session finishes.
type FinishHook func(domain.QuizResult) Summary

// Session drives one play-through. All transitions are serialized by mu.
type Session struct {
	id       string
	userID   string
	category domain.Category
	pool     *Pool
	cfg      SessionConfig
	now      func() time.Time
	resultID func() string
	log      logrus.FieldLogger
	onFinish FinishHook

	mu             sync.Mutex
	state          State
	current        domain.Question
	questionNumber int
	score          int
	stats          domain.SessionStats
	answerStatus   domain.AnswerStatus
	hintShown      bool
	revealSeq      uint64
	timer          *time.Timer
	closed         bool
	result         *domain.QuizResult
	summary        *Summary
	subscribers    map[chan View]struct{}

	finishOnce sync.Once
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithClock sets the timestamp source; used by tests.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.now = now }
}

// WithResultID sets the id generator for the emitted result.
func WithResultID(next func() string) SessionOption {
	return func(s *Session) { s.resultID = next }
}

// WithFinishHook registers the completion callback.
func WithFinishHook(hook FinishHook) SessionOption {
	return func(s *Session) { s.onFinish = hook }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(log logrus.FieldLogger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a session in the loading state; call Start to draw the first question.
func NewSession(id string, user domain.User, category domain.Category, pool *Pool, cfg SessionConfig, opts ...SessionOption) *Session {
	s := &Session{
		id:           id,
		userID:       user.UID,
		category:     category,
		pool:         pool,
		cfg:          cfg,
		now:          time.Now,
		resultID:     func() string { return id },
		log:          logrus.StandardLogger(),
		state:        StateLoading,
		answerStatus: domain.AnswerUnanswered,
		subscribers:  make(map[chan View]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithFields(logrus.Fields{"session_id": id, "category": category})
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Start draws the first question. A pool with nothing in it finishes the session at once.
func (s *Session) Start(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.state != StateLoading {
		s.mu.Unlock()
		return s.View(), domain.ErrInvalidTransition
	}
	q, err := s.pool.SelectNext(ctx)
	if err != nil {
		s.log.WithError(err).Warn("no questions to start with")
		s.finishLocked()
	} else {
		s.current = q
		s.questionNumber = 1
		s.state = StateAwaitingAnswer
		s.pool.EnsureStocked(ctx, s.questionNumber)
	}
	s.broadcastLocked()
	s.mu.Unlock()

	s.emit()
	return s.View(), nil
}

// SubmitAnswer evaluates input against the current question.
// Comparison is exact after trimming and lower-casing both sides.
func (s *Session) SubmitAnswer(input string) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingAnswer {
		s.log.WithField("state", s.state).Debug("answer rejected")
		return AnswerOutcome{}, domain.ErrInvalidTransition
	}
	if strings.TrimSpace(input) == "" {
		return AnswerOutcome{}, domain.ErrEmptyAnswer
	}

	out := AnswerOutcome{CorrectAnswer: s.current.Answer}
	if domain.Normalize(input) == domain.Normalize(s.current.Answer) {
		out.Correct = true
		out.Awarded = PointsPerCorrect
		s.score += PointsPerCorrect
		s.stats.Correct++
		s.answerStatus = domain.AnswerCorrect
	} else {
		s.stats.Incorrect++
		s.answerStatus = domain.AnswerIncorrect
	}
	s.state = StateAnswerRevealed
	s.revealSeq++
	s.scheduleAdvanceLocked()

	out.Score = s.score
	out.Stats = s.stats
	s.broadcastLocked()
	return out, nil
}

// RequestHint reveals the hint of the current question. Hints are counted once per question.
func (s *Session) RequestHint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateAwaitingAnswer {
		return "", domain.ErrInvalidTransition
	}
	if s.current.Hint == "" {
		return "", domain.ErrNoHint
	}
	if !s.hintShown {
		s.hintShown = true
		s.stats.Hints++
		s.broadcastLocked()
	}
	return s.current.Hint, nil
}

// Advance moves past a revealed answer to the next question, or finishes the session
// when the question limit is reached or the pool has nothing at all.
func (s *Session) Advance(ctx context.Context) (View, error) {
	s.mu.Lock()
	if s.state != StateAnswerRevealed {
		s.mu.Unlock()
		return s.View(), domain.ErrInvalidTransition
	}
	s.advanceLocked(ctx)
	s.mu.Unlock()

	s.emit()
	return s.View(), nil
}

// Finish ends the session on user request. Only answers already evaluated are counted.
func (s *Session) Finish() (Summary, error) {
	s.mu.Lock()
	switch s.state {
	case StateAwaitingAnswer, StateAnswerRevealed:
		s.finishLocked()
		s.broadcastLocked()
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.emit()
		sum, _ := s.Summary()
		return sum, domain.ErrInvalidTransition
	}

	s.emit()
	sum, _ := s.Summary()
	return sum, nil
}

// Summary returns the finished summary, if the session is over.
func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary != nil {
		return *s.summary, true
	}
	if s.result != nil {
		return Summary{Result: *s.result}, true
	}
	return Summary{}, false
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a snapshot of the session.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close stops timers and releases subscribers without finalizing.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

func (s *Session) advanceLocked(ctx context.Context) {
	s.stopTimerLocked()

	if s.cfg.QuestionLimit > 0 && s.questionNumber >= s.cfg.QuestionLimit {
		s.finishLocked()
		s.broadcastLocked()
		return
	}

	q, err := s.pool.SelectNext(ctx)
	if err != nil {
		s.log.WithError(err).Warn("no next question, finishing")
		s.finishLocked()
		s.broadcastLocked()
		return
	}

	s.current = q
	s.questionNumber++
	s.answerStatus = domain.AnswerUnanswered
	s.hintShown = false
	s.state = StateAwaitingAnswer
	s.pool.EnsureStocked(ctx, s.questionNumber)
	s.broadcastLocked()
}

func (s *Session) finishLocked() {
	s.stopTimerLocked()
	s.state = StateFinished
	result := FinalizeSession(s.viewLocked(), s.resultID(), s.now())
	s.result = &result
}

// emit runs the finish hook once, outside the session lock.
func (s *Session) emit() {
	s.mu.Lock()
	result := s.result
	s.mu.Unlock()
	if result == nil {
		return
	}

	s.finishOnce.Do(func() {
		sum := Summary{Result: *result}
		if s.onFinish != nil {
			sum = s.onFinish(*result)
		}
		s.mu.Lock()
		s.summary = &sum
		s.broadcastLocked()
		s.mu.Unlock()
	})
}

func (s *Session) scheduleAdvanceLocked() {
	if s.cfg.AutoAdvance <= 0 {
		return
	}
	s.stopTimerLocked()
	seq := s.revealSeq
	s.timer = time.AfterFunc(s.cfg.AutoAdvance, func() { s.autoAdvance(seq) })
}

func (s *Session) autoAdvance(seq uint64) {
	s.mu.Lock()
	if s.closed || s.state != StateAnswerRevealed || s.revealSeq != seq {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.advanceLocked(context.Background())
	s.mu.Unlock()

	s.emit()
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) viewLocked() View {
	v := View{
		ID:             s.id,
		UserID:         s.userID,
		Category:       s.category,
		State:          s.state,
		QuestionNumber: s.questionNumber,
		Score:          s.score,
		Stats:          s.stats,
		AnswerStatus:   s.answerStatus,
	}
	if s.state == StateAwaitingAnswer || s.state == StateAnswerRevealed {
		v.Question = &QuestionView{
			ID:       s.current.ID,
			Category: s.current.Category,
			Text:     s.current.Text,
			HasHint:  s.current.Hint != "",
		}
		if s.hintShown {
			v.Hint = s.current.Hint
		}
	}
	if s.state == StateAnswerRevealed {
		v.CorrectAnswer = s.current.Answer
	}
	if s.summary != nil {
		sum := *s.summary
		v.Summary = &sum
	}
	return v
}

// Subscribe returns a channel of snapshots, primed with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	ch <- s.viewLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	v := s.viewLocked()
	for ch := range s.subscribers {
		select {
		case ch <- v:
		default:
			// slow subscriber: drop its oldest snapshot so the latest one lands
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}
