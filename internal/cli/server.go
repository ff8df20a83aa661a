package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizroom-service/internal/app"
	"quizroom-service/internal/config"
	"quizroom-service/internal/domain"
	"quizroom-service/internal/generator"
	"quizroom-service/internal/infra/memory"
	pginfra "quizroom-service/internal/infra/postgres"
	redisinfra "quizroom-service/internal/infra/redis"
	transport "quizroom-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	// stores: Postgres when configured, in-memory otherwise
	var (
		roomStore        app.RoomStore
		participantStore app.ParticipantStore
		answerStore      app.AnswerStore
		loader           app.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		store := pginfra.NewStore(db)
		roomStore = store
		participantStore = store
		answerStore = store
		loader = pginfra.NewQuizLoader(pool)
	} else {
		store := memory.NewStore()
		roomStore = store
		participantStore = store
		answerStore = store
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
		log.Printf("no postgres configured, using in-memory stores with sample quizzes")
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, time.Hour)
	var snapshotStore app.SnapshotStore
	if redisClient != nil {
		// the shared cache can outlive the local one so restarted instances
		// recover mid-session snapshots; defaults to the quiz TTL
		redisTTL := config.TTLDuration(cfg.Redis.TTL, quizTTL)
		snapshotStore = redisinfra.NewSnapshotCache(redisClient, redisTTL)
	}
	snapshots := app.NewQuizSnapshots(loader, snapshotStore, quizTTL)

	var bus app.Bus
	if redisClient != nil {
		bus = redisinfra.NewBus(redisClient)
	} else {
		bus = memory.NewBus()
	}

	roomService := app.NewRoomService(roomStore, participantStore, answerStore, snapshots, bus)
	answerService := app.NewAnswerService(roomStore, participantStore, answerStore, snapshots, bus)

	wsHandler := transport.NewWSHandler(roomService, answerService)
	roomHandler := transport.NewRoomHandler(roomService, answerService)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/rooms", roomHandler.CreateRoom)
	mux.HandleFunc("/rooms/export", roomHandler.Export)

	if cfg.Generator.URL != "" {
		genTimeout := config.TTLDuration(cfg.Generator.Timeout, 30*time.Second)
		genClient := generator.NewClient(cfg.Generator.URL, cfg.Generator.APIKey, genTimeout)
		mux.Handle("/generate", transport.NewGenerateHandler(genClient))
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz room service on :%s", finalPort)
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

// sampleQuizzes seeds the in-memory loader so the server is playable without a
// database.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:   "q1",
					Type: domain.QuestionMultipleChoice,
					Text: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", IsCorrect: true},
						{ID: "o3", Text: "5"},
					},
				},
				{
					ID:            "q2",
					Type:          domain.QuestionTextInput,
					Text:          "Capital of France?",
					CorrectAnswer: "Paris",
				},
				{
					ID:   "q3",
					Type: domain.QuestionMatching,
					Text: "Match the animal to its sound",
					Pairs: []domain.MatchPair{
						{ID: "m1", Left: "Dog", Right: "Woof"},
						{ID: "m2", Left: "Cat", Right: "Meow"},
					},
				},
			},
		},
	}
}
