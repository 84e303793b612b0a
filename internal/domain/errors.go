package domain

import "errors"

var (
	// ErrSessionNotFound is returned when a quiz session has not been started or was discarded.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrUnknownCategory is returned for category keys outside the supported set.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrInvalidTransition is returned when an action does not apply to the session's current state.
	// The session is left untouched.
	ErrInvalidTransition = errors.New("action not allowed in current session state")
	// ErrEmptyAnswer is returned for blank answer submissions.
	ErrEmptyAnswer = errors.New("answer is empty")
	// ErrNoHint indicates the current question carries no hint.
	ErrNoHint = errors.New("question has no hint")
	// ErrPoolExhausted signals that no question was ever loaded for the session.
	ErrPoolExhausted = errors.New("no questions available")
	// ErrProfileNotFound is returned when a user has no stored profile.
	ErrProfileNotFound = errors.New("profile not found")
	// ErrInvalidNickname is returned when a nickname fails validation.
	ErrInvalidNickname = errors.New("invalid nickname")
	// ErrMissingUserID is returned by profile operations called without a user id.
	ErrMissingUserID = errors.New("user id required")
)
