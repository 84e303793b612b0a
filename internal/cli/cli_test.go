package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/domain"
)

func TestSampleBundlesCoverEveryCategory(t *testing.T) {
	bundles := sampleBundles()
	seen := make(map[string]struct{})
	for _, info := range domain.Categories() {
		questions := bundles[info.Key]
		if len(questions) == 0 {
			t.Fatalf("no sample questions for %s", info.Key)
		}
		for _, q := range questions {
			if q.Category != info.Key {
				t.Fatalf("question %s filed under %s has category %s", q.ID, info.Key, q.Category)
			}
			if _, dup := seen[q.ID]; dup {
				t.Fatalf("duplicate sample id %s", q.ID)
			}
			seen[q.ID] = struct{}{}
		}
	}
}

func TestLoadBundlesRequiresFiles(t *testing.T) {
	if _, err := loadBundles(t.TempDir()); err == nil {
		t.Fatalf("expected error for an empty bundle directory")
	}

	bundles, err := loadBundles("")
	if err != nil {
		t.Fatalf("sample bundles: %v", err)
	}
	if len(bundles) != len(domain.Categories()) {
		t.Fatalf("expected sample bundles for every category, got %d", len(bundles))
	}
}

func TestLoadConfigOverridesLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, log, err := loadConfig(path, "debug")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Log.Level != "debug" || log.GetLevel() != logrus.DebugLevel {
		t.Fatalf("expected debug level, got %q / %s", cfg.Log.Level, log.GetLevel())
	}
	if cfg.Quiz.InitialBatch != 10 {
		t.Fatalf("expected defaults applied, got %+v", cfg.Quiz)
	}
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"start", "migrate", "seed"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Fatalf("expected %s subcommand, got %v (%v)", name, sub, err)
		}
	}
}
