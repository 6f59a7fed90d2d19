package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"foosball/internal/config"
	"foosball/internal/invitations"
	matchManager "foosball/internal/match_management"
	"foosball/internal/metrics"
	"foosball/internal/routers"
	"foosball/internal/settlement"
	"foosball/internal/store"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	st := store.New(rdb, logger)

	mm := matchManager.NewMatchManager([]byte(cfg.JWTSecret), st, logger)
	mm.SetLobbyTimeout(cfg.LobbyTimeout)
	inv := invitations.NewService(st, logger)
	trigger := settlement.NewTrigger(st, logger)

	go trigger.Run()
	go mm.StartUpdateFanout()
	go mm.StartLobbyExpiryLoop()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Timeout(60*time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Handle("/metrics", metrics.Handler())
	routers.MatchRoutes(r, mm, inv)

	addr := ":" + cfg.Port
	logger.Info("foosball-svc listening", zap.String("addr", addr))
	log.Fatal(http.ListenAndServe(addr, r))
}
