// Package title maps lifetime correct-answer counts onto the six title tiers.
// Everything here is pure and total over integers; negative input is treated as zero.
package title

import (
	"fmt"
	"math"

	"pandit-quiz-service/internal/domain"
)

// Palette holds the presentation colors of a tier.
type Palette struct {
	Color      string `json:"color"`
	Background string `json:"bgColor"`
	Border     string `json:"borderColor"`
	Text       string `json:"textColor"`
}

// Tier is a named band of lifetime correct answers.
type Tier struct {
	ID          string  `json:"id"`
	Name        string  `json:"title"`
	MinCorrect  int     `json:"minCorrect"`
	MaxCorrect  int     `json:"maxCorrect"`
	Description string  `json:"description"`
	Badge       string  `json:"badge"`
	Palette     Palette `json:"palette"`
}

var tiers = []Tier{
	{
		ID: "rookie_spectator", Name: "Rookie Spectator", MinCorrect: 0, MaxCorrect: 9,
		Description: "An encouraging start for those new to the game.",
		Badge:       "🆕",
		Palette:     Palette{Color: "#8b5cf6", Background: "rgba(139, 92, 246, 0.2)", Border: "#8b5cf6", Text: "#c4b5fd"},
	},
	{
		ID: "armchair_analyst", Name: "Armchair Analyst", MinCorrect: 10, MaxCorrect: 17,
		Description: "You know your stuff and can hold your own in a sports debate.",
		Badge:       "📺",
		Palette:     Palette{Color: "#3b82f6", Background: "rgba(59, 130, 246, 0.2)", Border: "#3b82f6", Text: "#93c5fd"},
	},
	{
		ID: "seasoned_strategist", Name: "Seasoned Strategist", MinCorrect: 18, MaxCorrect: 25,
		Description: "You see the game on a deeper level, recognizing plays and patterns others miss.",
		Badge:       "🎯",
		Palette:     Palette{Color: "#10b981", Background: "rgba(16, 185, 129, 0.2)", Border: "#10b981", Text: "#6ee7b7"},
	},
	{
		ID: "elite_tactician", Name: "Elite Tactician", MinCorrect: 26, MaxCorrect: 33,
		Description: "Your knowledge is impressive, bordering on professional. You rarely make a bad call.",
		Badge:       "⚡",
		Palette:     Palette{Color: "#f59e0b", Background: "rgba(245, 158, 11, 0.2)", Border: "#f59e0b", Text: "#fbbf24"},
	},
	{
		ID: "stats_savant", Name: "Stats Savant", MinCorrect: 34, MaxCorrect: 41,
		Description: "You have a near-encyclopedic memory for sports statistics and history. Truly gifted.",
		Badge:       "🧠",
		Palette:     Palette{Color: "#ef4444", Background: "rgba(239, 68, 68, 0.2)", Border: "#ef4444", Text: "#fca5a5"},
	},
	{
		ID: "ultimate_pandit", Name: "The Ultimate Pandit", MinCorrect: 42, MaxCorrect: 50,
		Description: "The pinnacle of achievement. Your sports knowledge is legendary. You have mastered the challenge.",
		Badge:       "👑",
		Palette:     Palette{Color: "#ffd700", Background: "rgba(255, 215, 0, 0.2)", Border: "#ffd700", Text: "#fef08a"},
	},
}

// Tiers returns the static tier table, ascending.
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}

// Validate checks that the table starts at zero and is sorted, contiguous and non-overlapping.
func Validate() error {
	if len(tiers) == 0 || tiers[0].MinCorrect != 0 {
		return fmt.Errorf("title table must start at 0")
	}
	for i, t := range tiers {
		if t.MaxCorrect < t.MinCorrect {
			return fmt.Errorf("title %q: max %d below min %d", t.ID, t.MaxCorrect, t.MinCorrect)
		}
		if i > 0 && t.MinCorrect != tiers[i-1].MaxCorrect+1 {
			return fmt.Errorf("title %q: not contiguous with %q", t.ID, tiers[i-1].ID)
		}
	}
	return nil
}

// For returns the tier containing n. Counts above the table clamp to the top tier.
func For(n int) Tier {
	return tiers[indexFor(n)]
}

// Next returns the tier above For(n), or false at the top.
func Next(n int) (Tier, bool) {
	i := indexFor(n)
	if i == len(tiers)-1 {
		return Tier{}, false
	}
	return tiers[i+1], true
}

func indexFor(n int) int {
	if n < 0 {
		n = 0
	}
	for i, t := range tiers {
		if n >= t.MinCorrect && n <= t.MaxCorrect {
			return i
		}
	}
	return len(tiers) - 1
}

// Progress describes how far a user is through their current tier.
type Progress struct {
	Current       Tier  `json:"current"`
	Next          *Tier `json:"next,omitempty"`
	Percent       int   `json:"progress"`
	AnswersNeeded int   `json:"answersNeeded"`
	IsMax         bool  `json:"isMaxTitle"`
	TierProgress  int   `json:"currentTierProgress"`
	TierTotal     int   `json:"currentTierTotal"`
}

// ProgressFor computes progress towards the next tier.
func ProgressFor(n int) Progress {
	if n < 0 {
		n = 0
	}
	current := For(n)
	next, ok := Next(n)
	if !ok {
		return Progress{Current: current, Percent: 100, IsMax: true}
	}

	done := n - current.MinCorrect
	span := current.MaxCorrect - current.MinCorrect + 1
	needed := next.MinCorrect - n
	if needed < 0 {
		needed = 0
	}
	return Progress{
		Current:       current,
		Next:          &next,
		Percent:       int(math.Round(100 * float64(done) / float64(span))),
		AnswersNeeded: needed,
		TierProgress:  done,
		TierTotal:     span,
	}
}

// DidProgress reports whether moving from prev to next correct answers crosses a tier boundary.
func DidProgress(prev, next int) bool {
	return For(prev).ID != For(next).ID
}

// Change is the tier transition caused by one aggregation update.
type Change struct {
	Progressed bool `json:"hasProgressed"`
	Previous   Tier `json:"previousTitle"`
	Current    Tier `json:"newTitle"`
	IsFirst    bool `json:"isFirstTitle"`
}

// Compare describes the tier transition from prev to next.
func Compare(prev, next int) Change {
	return Change{
		Progressed: DidProgress(prev, next),
		Previous:   For(prev),
		Current:    For(next),
		IsFirst:    prev <= 0 && next > 0,
	}
}

// Unlock is a tier annotated for one user.
type Unlock struct {
	Tier
	Unlocked bool `json:"isUnlocked"`
	Current  bool `json:"isCurrent"`
}

// Unlocks lists every tier with its unlock state for n correct answers.
func Unlocks(n int) []Unlock {
	current := For(n).ID
	out := make([]Unlock, 0, len(tiers))
	for _, t := range tiers {
		out = append(out, Unlock{Tier: t, Unlocked: n >= t.MinCorrect, Current: t.ID == current})
	}
	return out
}

// Format renders a tier name, optionally prefixed with its badge.
func Format(t Tier, withBadge bool) string {
	if t.ID == "" {
		return "No Title"
	}
	if withBadge {
		return t.Badge + " " + t.Name
	}
	return t.Name
}

// Motivation returns the nudge shown next to a progress bar.
func Motivation(p Progress) string {
	if p.IsMax || p.Next == nil {
		return fmt.Sprintf("🎉 Congratulations! You've achieved the highest title: %s!", p.Current.Name)
	}
	next := p.Next.Name
	switch n := p.AnswersNeeded; {
	case n == 0:
		return fmt.Sprintf("🚀 You're ready to unlock %q! Keep playing to achieve it!", next)
	case n == 1:
		return fmt.Sprintf("🔥 Just 1 more correct answer to become %q!", next)
	case n <= 3:
		return fmt.Sprintf("💪 Only %d more correct answers to reach %q!", n, next)
	case n <= 5:
		return fmt.Sprintf("⭐ %d correct answers away from %q - you're getting close!", n, next)
	default:
		return fmt.Sprintf("🎯 Work towards %d more correct answers to unlock %q!", n, next)
	}
}

// Achievements summarizes a user's quiz history.
type Achievements struct {
	TotalCorrect int      `json:"totalCorrect"`
	Current      Tier     `json:"currentTitle"`
	Highest      Tier     `json:"highestTitle"`
	Progress     Progress `json:"titleProgression"`
	TotalQuizzes int      `json:"totalQuizzes"`
}

// Lifetime folds a history into lifetime achievements.
func Lifetime(history []domain.QuizResult) Achievements {
	total, best := 0, 0
	for _, r := range history {
		total += r.Correct
		if r.Correct > best {
			best = r.Correct
		}
	}
	high := total
	if best > high {
		high = best
	}
	return Achievements{
		TotalCorrect: total,
		Current:      For(total),
		Highest:      For(high),
		Progress:     ProgressFor(total),
		TotalQuizzes: len(history),
	}
}
