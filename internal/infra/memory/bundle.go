package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"pandit-quiz-service/internal/domain"
)

// StaticLoader is a loader backed by in-memory category bundles (bundled JSON files, tests, demos).
type StaticLoader struct {
	bundles map[domain.Category][]domain.Question
}

func NewStaticLoader(bundles map[domain.Category][]domain.Question) *StaticLoader {
	return &StaticLoader{bundles: bundles}
}

func (l *StaticLoader) LoadCategory(_ context.Context, category domain.Category) ([]domain.Question, error) {
	questions, ok := l.bundles[category]
	if !ok {
		return nil, fmt.Errorf("%w: no bundle for %s", domain.ErrUnknownCategory, category)
	}
	out := make([]domain.Question, len(questions))
	copy(out, questions)
	return out, nil
}

// BundleFile is the file name a category bundle is read from.
func BundleFile(category domain.Category) string {
	return string(category) + "_quiz_questions.json"
}

// LoadBundleDir reads every known category bundle present in dir. Missing files are skipped.
// Entries without an id get "{category}-{index}".
func LoadBundleDir(dir string) (map[domain.Category][]domain.Question, error) {
	bundles := make(map[domain.Category][]domain.Question)
	for _, info := range domain.Categories() {
		path := filepath.Join(dir, BundleFile(info.Key))
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", path, err)
		}
		var questions []domain.Question
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("decode bundle %s: %w", path, err)
		}
		for i := range questions {
			questions[i].Category = info.Key
			if questions[i].ID == "" {
				questions[i].ID = fmt.Sprintf("%s-%d", info.Key, i)
			}
		}
		bundles[info.Key] = questions
	}
	return bundles, nil
}
