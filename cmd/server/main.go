package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ankit/flywise/config"
	searchcache "github.com/ankit/flywise/internal/cache"
	"github.com/ankit/flywise/internal/handler"
	"github.com/ankit/flywise/internal/middleware"
	"github.com/ankit/flywise/internal/repository"
	"github.com/ankit/flywise/internal/reservation"
	"github.com/ankit/flywise/internal/service"
	"github.com/ankit/flywise/pkg/bus"
	"github.com/ankit/flywise/pkg/cache"
	"github.com/ankit/flywise/pkg/db"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("failed to load config")
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to PostgreSQL")
	}
	defer pgPool.Close()
	logger.Info("PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	defer redisClient.Close()
	logger.Info("Redis connected")

	// ── Event bus publisher ─────────────────────────────
	publisher := bus.NewPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	// ── Initialize layers ───────────────────────────────
	flightRepo := repository.NewFlightRepository(pgPool)
	journeyRepo := repository.NewJourneyRepository(pgPool)
	bookingRepo := repository.NewBookingRepository(pgPool, flightRepo)

	holds := reservation.NewRedisHoldStore(redisClient, cfg.Reservation.TTLBuffer)
	resultCache := searchcache.NewSearchCache(redisClient, cfg.Search.CacheTTL)

	flightSvc := service.NewFlightService(flightRepo, publisher, logger)
	searchSvc := service.NewSearchService(journeyRepo, flightRepo, resultCache, logger)
	bookingSvc := service.NewBookingService(journeyRepo, flightRepo, holds, bookingRepo, cfg.Reservation.TTL, logger)

	flightHandler := handler.NewFlightHandler(flightSvc, logger)
	searchHandler := handler.NewSearchHandler(searchSvc, logger)
	bookingHandler := handler.NewBookingHandler(bookingSvc, logger)

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.Recoverer(logger))
	router.Use(middleware.RequestLogger(logger))

	// Health check endpoint.
	router.HandleFunc("/health", healthHandler(pgPool, redisClient, cfg.Kafka)).Methods(http.MethodGet)

	// API v1 routes.
	api := router.PathPrefix("/api/v1").Subrouter()
	// Flight administration
	api.HandleFunc("/flights", flightHandler.CreateFlight).Methods(http.MethodPost)
	api.HandleFunc("/flights/{id}", flightHandler.GetFlight).Methods(http.MethodGet)
	// Journey search
	api.HandleFunc("/journeys/search", searchHandler.SearchJourneys).Methods(http.MethodGet)
	// Booking
	api.HandleFunc("/bookings", bookingHandler.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{id}", bookingHandler.GetBooking).Methods(http.MethodGet)

	// Wrap with CORS so browser clients can call the API.
	root := middleware.CORS(router)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		logger.WithField("addr", cfg.Server.ServerAddr()).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Fatal("server forced to shutdown")
	}

	logger.Info("server stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG, Redis and Kafka
// connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client, kafkaCfg config.KafkaConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		if err := bus.HealthCheck(r.Context(), kafkaCfg); err != nil {
			resp.Status = "degraded"
			resp.Services["kafka"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["kafka"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
