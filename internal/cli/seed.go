package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/infra/memory"
	pgstore "pandit-quiz-service/internal/infra/postgres"
	infraredis "pandit-quiz-service/internal/infra/redis"
)

// NewSeedCmd uploads question bundles into Postgres.
func NewSeedCmd(configPath, logLevel *string) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upload {category}_quiz_questions.json bundles into the questions table",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath, *logLevel, dir)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "bundle directory (defaults to quiz.bundle_dir, then the built-in sample)")
	return cmd
}

func runSeed(ctx context.Context, configPath, logLevel, dir string) error {
	cfg, log, err := loadConfig(configPath, logLevel)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}

	if dir == "" {
		dir = cfg.Quiz.BundleDir
	}
	bundles, err := loadBundles(dir)
	if err != nil {
		return err
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	loader := pgstore.NewQuestionLoader(pool)

	var cache *infraredis.QuestionCache
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer client.Close()
		cache = infraredis.NewQuestionCache(client, loader, time.Minute)
	}

	total := 0
	for _, info := range domain.Categories() {
		questions, ok := bundles[info.Key]
		if !ok {
			continue
		}
		n, err := loader.Seed(ctx, questions)
		if err != nil {
			return fmt.Errorf("seed %s: %w", info.Key, err)
		}
		total += n
		log.WithField("category", info.Key).WithField("questions", n).Info("category seeded")
		if cache != nil {
			if err := cache.Invalidate(ctx, info.Key); err != nil {
				log.WithError(err).Warn("failed to invalidate question cache")
			}
		}
	}
	log.WithField("questions", total).Info("seed complete")
	return nil
}

// loadBundles reads dir, or falls back to the built-in sample when dir is empty.
func loadBundles(dir string) (map[domain.Category][]domain.Question, error) {
	if dir == "" {
		return sampleBundles(), nil
	}
	bundles, err := memory.LoadBundleDir(dir)
	if err != nil {
		return nil, err
	}
	if len(bundles) == 0 {
		return nil, fmt.Errorf("no %s style bundles found in %s", memory.BundleFile("{category}"), dir)
	}
	return bundles, nil
}
