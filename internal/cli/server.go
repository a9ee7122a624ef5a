package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"quiznight-service/internal/app"
	"quiznight-service/internal/config"
	"quiznight-service/internal/domain"
	"quiznight-service/internal/infra/memory"
	pgloader "quiznight-service/internal/infra/postgres"
	redisinfra "quiznight-service/internal/infra/redis"
	transport "quiznight-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the game server",
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
	setupLogging(cfg.Log.Level)

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
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bankRepo app.BankRepository
	if redisClient != nil {
		bankRepo = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		bankRepo = memory.NewBankRepository(loader, bankTTL)
	}

	clock := clockwork.NewRealClock()
	idleTTL := config.TTLDuration(cfg.Room.IdleTTL, 2*time.Hour)
	timerSeconds := cfg.Room.TimerSeconds
	if timerSeconds <= 0 {
		timerSeconds = 30
	}

	memStore := memory.NewRoomStore(clock, idleTTL, timerSeconds)
	memStore.StartSweeper(ctx)

	var rooms app.RoomRegistry = memStore
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(memStore, redisClient, redisTTL)
	}

	bankID := cfg.Bank.ID
	if bankID == "" {
		bankID = "bank-1"
	}
	service := app.NewGameService(rooms, bankRepo, bankID)
	wsHandler := transport.NewWSHandler(service)
	roomsHandler := transport.NewRoomsHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("POST /api/rooms", roomsHandler.CreateRoom)
	mux.HandleFunc("GET /api/rooms/{roomID}", roomsHandler.GetRoom)
	mux.HandleFunc("GET /ws/host/{roomID}", wsHandler.ServeHost)
	mux.HandleFunc("GET /ws/player/{roomID}/{playerName}", wsHandler.ServePlayer)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections outlive any sane value.
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiznight service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server...")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// sampleBanks provides a minimal question bank so the server is playable
// without Postgres; production deployments load banks from the database.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"bank-1": {
			ID: "bank-1",
			Categories: []domain.Category{
				{
					Name: "General Knowledge",
					Questions: []domain.Question{
						{
							ID:      "q1",
							Prompt:  "What is the largest planet in the solar system?",
							Options: []string{"Earth", "Jupiter", "Saturn", "Neptune"},
							Answer:  "Jupiter",
							Points:  100,
							Mode:    domain.ModeChoice,
						},
						{
							ID:     "q2",
							Prompt: "Name a country that borders three oceans.",
							Points: 150,
							Mode:   domain.ModeBuzzer,
						},
					},
				},
			},
		},
	}
}
