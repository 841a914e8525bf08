package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"campus-assessment-service/internal/app"
	"campus-assessment-service/internal/config"
	"campus-assessment-service/internal/infra/memory"
	infrapg "campus-assessment-service/internal/infra/postgres"
	infraredis "campus-assessment-service/internal/infra/redis"
	transport "campus-assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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

	var quizStore app.QuizStore
	var attemptStore app.AttemptStore
	var loader memory.QuizLoader

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		pgQuizzes := infrapg.NewQuizStore(pool)
		quizStore = pgQuizzes
		attemptStore = infrapg.NewAttemptStore(pool)
		loader = pgQuizzes
	} else {
		memAttempts := memory.NewAttemptStore()
		memQuizzes := memory.NewQuizStore(memAttempts)
		quizStore = memQuizzes
		attemptStore = memAttempts
		loader = memQuizzes
		log.Printf("no postgres url configured, using in-memory stores")
	}

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)

	var quizzes interface {
		app.QuizProvider
		app.CacheInvalidator
	}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		quizzes = infraredis.NewQuizCache(client, loader, cacheTTL)
	} else {
		quizzes = memory.NewQuizCache(loader, cacheTTL)
	}

	sections := make(map[string]string, len(cfg.Sections))
	for _, s := range cfg.Sections {
		sections[s.ID] = s.Name
	}
	sectionDir := memory.NewSectionDirectory(sections)
	studentDir := memory.NewStudentDirectory(nil)

	attemptSvc := app.NewAttemptService(quizzes, attemptStore)
	quizSvc := app.NewQuizService(quizStore, attemptStore, sectionDir, quizzes)
	resultsSvc := app.NewResultsService(quizzes, attemptStore, attemptSvc, studentDir)

	identity := transport.NewIdentityMiddleware(cfg.Auth.Secret)
	handler := transport.NewHandler(quizSvc, attemptSvc, resultsSvc, identity)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      handler.Routes(),
		ReadTimeout:  config.TTLDuration(cfg.Server.ReadTimeout, 15*time.Second),
		WriteTimeout: config.TTLDuration(cfg.Server.WriteTimeout, 15*time.Second),
	}

	go func() {
		log.Printf("starting assessment service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
