package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pandit-quiz-service/internal/domain"
)

type hookRecorder struct {
	calls  atomic.Int32
	result atomic.Value
}

func (h *hookRecorder) hook(result domain.QuizResult) Summary {
	h.calls.Add(1)
	h.result.Store(result)
	return Summary{Result: result, Saved: true}
}

func (h *hookRecorder) last() domain.QuizResult {
	r, _ := h.result.Load().(domain.QuizResult)
	return r
}

func newTestSession(t *testing.T, questions []domain.Question, cfg SessionConfig) (*Session, *hookRecorder) {
	t.Helper()
	ctx := context.Background()
	source := &fakeSource{questions: questions}
	pool := InitializePool(ctx, domain.CategoryTennis, source, firstPick{}, PoolConfig{}, quietLogger())
	rec := &hookRecorder{}
	s := NewSession("sess-1", domain.User{UID: "user-1"}, domain.CategoryTennis, pool, cfg,
		WithClock(fixedClock()),
		WithResultID(func() string { return "result-1" }),
		WithFinishHook(rec.hook),
		WithSessionLogger(quietLogger()),
	)
	t.Cleanup(s.Close)
	return s, rec
}

func TestSessionStartDrawsFirstQuestion(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{})

	require.Equal(t, StateLoading, s.State())
	view, err := s.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingAnswer, view.State)
	assert.Equal(t, 1, view.QuestionNumber)
	require.NotNil(t, view.Question)
	assert.Equal(t, "q1", view.Question.ID)
	assert.True(t, view.Question.HasHint)
	assert.Empty(t, view.CorrectAnswer, "answer must stay hidden until evaluated")

	_, err = s.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSessionAnswerIsCaseInsensitive(t *testing.T) {
	questions := []domain.Question{{ID: "t1", Text: "Serve that is not returned?", Answer: "Ace", Hint: "A card"}}

	for _, input := range []string{"ace", "  ACE  ", "Ace"} {
		s, _ := newTestSession(t, questions, SessionConfig{})
		_, err := s.Start(context.Background())
		require.NoError(t, err)

		out, err := s.SubmitAnswer(input)
		require.NoError(t, err)
		assert.True(t, out.Correct, input)
		assert.Equal(t, PointsPerCorrect, out.Awarded)
		assert.Equal(t, 100, out.Score)
		assert.Equal(t, "Ace", out.CorrectAnswer)
		assert.Equal(t, 1, out.Stats.Correct)

		view := s.View()
		assert.Equal(t, StateAnswerRevealed, view.State)
		assert.Equal(t, domain.AnswerCorrect, view.AnswerStatus)
		assert.Equal(t, "Ace", view.CorrectAnswer)
	}
}

func TestSessionIncorrectAnswer(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 2), SessionConfig{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	out, err := s.SubmitAnswer("Answer 1 and more")
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Zero(t, out.Awarded)
	assert.Zero(t, out.Score)
	assert.Equal(t, domain.SessionStats{Incorrect: 1}, out.Stats)
	assert.Equal(t, domain.AnswerIncorrect, s.View().AnswerStatus)
}

func TestSessionRejectsEmptyAnswer(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 2), SessionConfig{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	_, err = s.SubmitAnswer("   ")
	require.ErrorIs(t, err, domain.ErrEmptyAnswer)
	view := s.View()
	assert.Equal(t, StateAwaitingAnswer, view.State)
	assert.Zero(t, view.Stats.Answered())
}

func TestSessionInvalidTransitionsLeaveStateUntouched(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 2), SessionConfig{})

	_, err := s.SubmitAnswer("early")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.Finish()
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = s.Start(context.Background())
	require.NoError(t, err)

	_, err = s.Advance(context.Background())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, StateAwaitingAnswer, s.State())

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)
	before := s.View()

	_, err = s.SubmitAnswer("Answer 1")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = s.RequestHint()
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, before, s.View())
}

func TestSessionHintCountedOncePerQuestion(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{})
	ctx := context.Background()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		hint, err := s.RequestHint()
		require.NoError(t, err)
		assert.Equal(t, "Hint 1", hint)
	}
	view := s.View()
	assert.Equal(t, 1, view.Stats.Hints)
	assert.Equal(t, "Hint 1", view.Hint)

	_, err = s.SubmitAnswer("nope")
	require.NoError(t, err)
	view, err = s.Advance(ctx)
	require.NoError(t, err)
	assert.Empty(t, view.Hint)

	_, err = s.RequestHint()
	require.NoError(t, err)
	assert.Equal(t, 2, s.View().Stats.Hints)
}

func TestSessionHintMissing(t *testing.T) {
	s, _ := newTestSession(t, []domain.Question{{ID: "x", Text: "No hint here?", Answer: "none"}}, SessionConfig{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	assert.False(t, s.View().Question.HasHint)
	_, err = s.RequestHint()
	require.ErrorIs(t, err, domain.ErrNoHint)
	assert.Zero(t, s.View().Stats.Hints)
}

func TestSessionRepeatsAfterExhaustion(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{})
	ctx := context.Background()
	view, err := s.Start(ctx)
	require.NoError(t, err)

	shown := []string{view.Question.ID}
	for i := 0; i < 3; i++ {
		_, err := s.SubmitAnswer("Answer " + view.Question.ID[1:])
		require.NoError(t, err)
		view, err = s.Advance(ctx)
		require.NoError(t, err)
		require.Equal(t, StateAwaitingAnswer, view.State)
		shown = append(shown, view.Question.ID)
	}

	assert.ElementsMatch(t, []string{"q1", "q2", "q3"}, shown[:3])
	assert.Contains(t, shown[:3], shown[3])
	assert.Equal(t, 4, view.QuestionNumber)
	assert.Equal(t, 300, view.Score)
}

func TestSessionEmptyPoolFinishesImmediately(t *testing.T) {
	ctx := context.Background()
	source := &fakeSource{err: errors.New("network unreachable")}
	pool := InitializePool(ctx, domain.CategoryCricket, source, firstPick{}, PoolConfig{}, quietLogger())
	rec := &hookRecorder{}
	s := NewSession("s", domain.User{UID: "u"}, domain.CategoryCricket, pool, SessionConfig{},
		WithFinishHook(rec.hook), WithSessionLogger(quietLogger()))

	view, err := s.Start(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, view.State)
	assert.Nil(t, view.Question)
	require.NotNil(t, view.Summary)
	assert.Zero(t, view.Summary.Result.QuestionsAnswered)
	assert.Equal(t, int32(1), rec.calls.Load())
}

func TestSessionQuestionLimit(t *testing.T) {
	s, rec := newTestSession(t, makeQuestions(domain.CategoryTennis, 5), SessionConfig{QuestionLimit: 2})
	ctx := context.Background()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)
	view, err := s.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, StateAwaitingAnswer, view.State)

	_, err = s.SubmitAnswer("wrong")
	require.NoError(t, err)
	view, err = s.Advance(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateFinished, view.State)

	result := rec.last()
	assert.Equal(t, 2, result.QuestionsAnswered)
	assert.Equal(t, 1, result.Correct)
	assert.Equal(t, 1, result.Incorrect)
	assert.Equal(t, 100, result.Score)
}

func TestSessionFinishCountsOnlyEvaluatedAnswers(t *testing.T) {
	s, rec := newTestSession(t, makeQuestions(domain.CategoryTennis, 5), SessionConfig{})
	ctx := context.Background()
	_, err := s.Start(ctx)
	require.NoError(t, err)

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)
	_, err = s.Advance(ctx)
	require.NoError(t, err)
	_, err = s.RequestHint()
	require.NoError(t, err)

	sum, err := s.Finish()
	require.NoError(t, err)
	assert.True(t, sum.Saved)
	assert.Equal(t, domain.QuizResult{
		ID:                "result-1",
		UserID:            "user-1",
		Category:          domain.CategoryTennis,
		Score:             100,
		Correct:           1,
		Hints:             1,
		QuestionsAnswered: 1,
		Timestamp:         fixedClock()(),
	}, sum.Result)

	again, err := s.Finish()
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, sum, again)
	assert.Equal(t, int32(1), rec.calls.Load())

	_, err = s.SubmitAnswer("late")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSessionAutoAdvance(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{AutoAdvance: 10 * time.Millisecond})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v := s.View()
		return v.State == StateAwaitingAnswer && v.QuestionNumber == 2
	}, time.Second, 5*time.Millisecond)
}

func TestSessionFinishBeatsAutoAdvance(t *testing.T) {
	s, rec := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{AutoAdvance: 5 * time.Millisecond})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)
	_, err = s.Finish()
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, StateFinished, s.State())
	assert.Equal(t, int32(1), rec.calls.Load())
	assert.Equal(t, 1, rec.last().QuestionsAnswered)
}

func TestSessionSubscribeReceivesSnapshots(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 3), SessionConfig{})
	_, err := s.Start(context.Background())
	require.NoError(t, err)

	ch, cancel := s.Subscribe()
	defer cancel()

	first := <-ch
	assert.Equal(t, StateAwaitingAnswer, first.State)

	_, err = s.SubmitAnswer("Answer 1")
	require.NoError(t, err)

	select {
	case v := <-ch:
		assert.Equal(t, StateAnswerRevealed, v.State)
		assert.Equal(t, 100, v.Score)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestSessionCloseReleasesSubscribers(t *testing.T) {
	s, _ := newTestSession(t, makeQuestions(domain.CategoryTennis, 1), SessionConfig{})
	ch, cancel := s.Subscribe()
	defer cancel()
	<-ch

	s.Close()
	_, ok := <-ch
	assert.False(t, ok)

	late, _ := s.Subscribe()
	_, ok = <-late
	assert.False(t, ok)
}
