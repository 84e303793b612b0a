package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pandit-quiz-service/internal/app"
	"pandit-quiz-service/internal/config"
	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/infra/memory"
	pgstore "pandit-quiz-service/internal/infra/postgres"
	infraredis "pandit-quiz-service/internal/infra/redis"
	"pandit-quiz-service/internal/infra/sqlite"
	"pandit-quiz-service/internal/logging"
	"pandit-quiz-service/internal/title"
	transport "pandit-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port, logLevel *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port, *logLevel)
		},
	}
}

func loadConfig(configPath, logLevel string) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logging.New(cfg.Log.Level, cfg.Log.Format), nil
}

func runServer(ctx context.Context, configPath, portFlag, logLevel string) error {
	cfg, log, err := loadConfig(configPath, logLevel)
	if err != nil {
		return err
	}
	if err := domain.ValidateCategories(); err != nil {
		return err
	}
	if err := title.Validate(); err != nil {
		return err
	}
	strategy, err := app.ParseLoadStrategy(cfg.Quiz.Loading)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, redisClient)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader
	switch {
	case pool != nil:
		loader = pgstore.NewQuestionLoader(pool)
	default:
		bundles, err := loadBundles(cfg.Quiz.BundleDir)
		if err != nil {
			return err
		}
		loader = memory.NewStaticLoader(bundles)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = infraredis.NewQuestionCache(redisClient, loader, quizTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = infraredis.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	var profiles app.ProfileStore
	switch {
	case cfg.Postgres.URL != "":
		db := openBunDB(cfg.Postgres.URL)
		closers = append(closers, db)
		profiles = pgstore.NewResultStore(db)
	case cfg.SQLite.Path != "":
		sqliteStore, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return err
		}
		closers = append(closers, sqliteStore)
		profiles = sqliteStore
	default:
		log.Warn("no profile store configured, results are kept in memory only")
		profiles = memory.NewProfileStore()
	}

	opts := []app.Option{
		app.WithSettings(app.Settings{
			Pool: app.PoolConfig{
				Strategy:     strategy,
				InitialBatch: cfg.Quiz.InitialBatch,
				RefillBatch:  cfg.Quiz.RefillBatch,
				RefillAt:     cfg.Quiz.RefillAt,
			},
			Session: app.SessionConfig{
				QuestionLimit: cfg.Quiz.QuestionLimit,
				AutoAdvance:   config.TTLDuration(cfg.Quiz.AutoAdvance, 0),
			},
			HistoryLimit:     cfg.Quiz.HistoryLimit,
			LeaderboardLimit: cfg.Quiz.LeaderboardLimit,
		}),
		app.WithLogger(log),
	}
	if redisClient != nil {
		opts = append(opts, app.WithLeaderboardIndex(infraredis.NewLeaderboard(redisClient)))
	}
	service := app.NewQuizService(store, questions, profiles, opts...)

	router := transport.NewRouter(transport.NewRESTHandler(service, log), transport.NewWSHandler(service, log))

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleBundles is the built-in question set used when neither Postgres nor a bundle directory is configured.
func sampleBundles() map[domain.Category][]domain.Question {
	q := func(category domain.Category, id, text, answer, hint string) domain.Question {
		return domain.Question{ID: id, Category: category, Text: text, Answer: answer, Hint: hint}
	}
	return map[domain.Category][]domain.Question{
		domain.CategoryCricket: {
			q(domain.CategoryCricket, "cricket-0", "How many players are on the field for one team in cricket?", "11", "Same as a soccer side"),
			q(domain.CategoryCricket, "cricket-1", "What is the term for a bowler taking three wickets in three consecutive balls?", "Hat-trick", "Also used in soccer for three goals"),
			q(domain.CategoryCricket, "cricket-2", "Which country won the first Cricket World Cup in 1975?", "West Indies", "A Caribbean team"),
		},
		domain.CategoryAmericanFootball: {
			q(domain.CategoryAmericanFootball, "american_football-0", "How many points is a touchdown worth?", "6", "Half a dozen"),
			q(domain.CategoryAmericanFootball, "american_football-1", "What is the championship game of the NFL called?", "Super Bowl", "Played in February"),
			q(domain.CategoryAmericanFootball, "american_football-2", "Which position usually throws the ball?", "Quarterback", "QB"),
		},
		domain.CategorySoccer: {
			q(domain.CategorySoccer, "soccer-0", "Which country has won the most FIFA World Cups?", "Brazil", "Samba"),
			q(domain.CategorySoccer, "soccer-1", "How long is a regular soccer match in minutes?", "90", "Two halves of 45"),
			q(domain.CategorySoccer, "soccer-2", "What card does a referee show for a sending off?", "Red", "Colour of danger"),
		},
		domain.CategoryFormula1: {
			q(domain.CategoryFormula1, "formula1-0", "Which team races in red?", "Ferrari", "Based in Maranello"),
			q(domain.CategoryFormula1, "formula1-1", "In which city is the street circuit that hosts the Monaco Grand Prix?", "Monte Carlo", "Casino"),
			q(domain.CategoryFormula1, "formula1-2", "What flag signals the end of a race?", "Chequered", "Black and white"),
		},
		domain.CategoryTennis: {
			q(domain.CategoryTennis, "tennis-0", "What is a serve that the receiver cannot touch called?", "Ace", "Also a playing card"),
			q(domain.CategoryTennis, "tennis-1", "What word means a score of zero in tennis?", "Love", "A feeling"),
			q(domain.CategoryTennis, "tennis-2", "Which Grand Slam is played on grass?", "Wimbledon", "London"),
		},
	}
}
