package domain

import (
	"fmt"
	"strings"
)

// Category is one of the supported sports question sets.
type Category string

const (
	CategoryCricket          Category = "cricket"
	CategoryAmericanFootball Category = "american_football"
	CategorySoccer           Category = "soccer"
	CategoryFormula1         Category = "formula1"
	CategoryTennis           Category = "tennis"
)

// CategoryInfo is the display metadata for a category.
type CategoryInfo struct {
	Key  Category `json:"key"`
	Name string   `json:"name"`
	Icon string   `json:"icon"`
}

var categories = []CategoryInfo{
	{Key: CategoryCricket, Name: "Cricket", Icon: "🏏"},
	{Key: CategoryAmericanFootball, Name: "Football (US)", Icon: "🏈"},
	{Key: CategorySoccer, Name: "Soccer", Icon: "⚽"},
	{Key: CategoryFormula1, Name: "Formula 1", Icon: "🏎️"},
	{Key: CategoryTennis, Name: "Tennis", Icon: "🎾"},
}

// Categories returns the supported categories in display order.
func Categories() []CategoryInfo {
	out := make([]CategoryInfo, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory resolves a raw key (case-insensitive) into a supported category.
func ParseCategory(raw string) (Category, error) {
	key := Category(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := key.Info(); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, raw)
	}
	return key, nil
}

// Info returns the display metadata for c.
func (c Category) Info() (CategoryInfo, bool) {
	for _, info := range categories {
		if info.Key == c {
			return info, true
		}
	}
	return CategoryInfo{}, false
}

// ValidateCategories checks the category table; called once at startup.
func ValidateCategories() error {
	seen := make(map[Category]struct{}, len(categories))
	for _, info := range categories {
		if info.Key == "" || info.Name == "" {
			return fmt.Errorf("category table: incomplete entry %+v", info)
		}
		if _, dup := seen[info.Key]; dup {
			return fmt.Errorf("category table: duplicate key %q", info.Key)
		}
		seen[info.Key] = struct{}{}
	}
	return nil
}
