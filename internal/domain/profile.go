package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultEmailNickname = "Player"
	defaultGuestNickname = "Guest Player"

	minNicknameLen = 2
	maxNicknameLen = 20
)

// NewProfile builds the initial profile for a first sign-in.
// Google users pick a nickname after sign-in, email users bring one from sign-up,
// everyone else starts as a guest.
func NewProfile(userID string, provider Provider, nickname, email string, now time.Time) UserProfile {
	p := UserProfile{
		UserID:    userID,
		Email:     email,
		Provider:  provider,
		CreatedAt: now,
	}
	switch provider {
	case ProviderGoogle:
		p.NeedsNicknameSetup = true
	case ProviderEmail:
		p.Nickname = strings.TrimSpace(nickname)
		if p.Nickname == "" {
			p.Nickname = defaultEmailNickname
		}
	default:
		p.Nickname = defaultGuestNickname
	}
	return p
}

// ValidateNickname trims and checks a user-chosen nickname.
func ValidateNickname(raw string) (string, error) {
	nickname := strings.TrimSpace(raw)
	n := utf8.RuneCountInString(nickname)
	if n < minNicknameLen || n > maxNicknameLen {
		return "", fmt.Errorf("%w: must be %d-%d characters", ErrInvalidNickname, minNicknameLen, maxNicknameLen)
	}
	return nickname, nil
}
