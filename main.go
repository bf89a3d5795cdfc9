package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/puoklam/social-graph-backend/api/auth"
	"github.com/puoklam/social-graph-backend/api/health"
	apirel "github.com/puoklam/social-graph-backend/api/relationship"
	"github.com/puoklam/social-graph-backend/api/socket"
	"github.com/puoklam/social-graph-backend/api/user"
	tokens "github.com/puoklam/social-graph-backend/auth"
	"github.com/puoklam/social-graph-backend/db"
	"github.com/puoklam/social-graph-backend/env"
	"github.com/puoklam/social-graph-backend/logger"
	"github.com/puoklam/social-graph-backend/middleware"
	"github.com/puoklam/social-graph-backend/mq"
	"github.com/puoklam/social-graph-backend/notify"
	"github.com/puoklam/social-graph-backend/observability"
	"github.com/puoklam/social-graph-backend/redis"
	"github.com/puoklam/social-graph-backend/relationship"
	"github.com/puoklam/social-graph-backend/server"
	"github.com/puoklam/social-graph-backend/storage"
	"github.com/puoklam/social-graph-backend/ws"
	"go.uber.org/zap"
)

const accessTokenTTL = time.Hour

func main() {
	cfg, err := env.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := db.Open(cfg.DBConn, log)
	if err != nil {
		log.Fatal("connect database", zap.Error(err))
	}
	defer store.Close()

	redisClient := redis.NewClient(cfg.RedisAddr)
	defer redisClient.Close()

	producer, err := mq.NewProducer(cfg.NsqdTCPAddr, log)
	if err != nil {
		log.Fatal("create nsq producer", zap.Error(err))
	}
	defer producer.Stop()

	registry := observability.NewRegistry()
	httpMetrics := observability.NewHTTPMetrics(registry)

	graph := relationship.NewService(store,
		relationship.WithCache(redis.NewFollowingCache(redisClient, cfg.FollowingCacheTTL)),
		relationship.WithPublisher(producer),
		relationship.WithRecorder(observability.NewFollowMetrics(registry)),
		relationship.WithLogger(log.Named("relationship")),
	)

	hub := ws.NewHub()
	dispatcher := notify.NewDispatcher(hub, store, store, notify.NewExpoPusher(log), log.Named("notify"))
	socketConsumer, err := mq.NewConsumer(mq.SocketChannel(cfg.ServerID), cfg.NsqlookupdAddr, dispatcher.HandleSockets, log)
	if err != nil {
		log.Fatal("create nsq socket consumer", zap.Error(err))
	}
	pushConsumer, err := mq.NewConsumer(mq.ChannelPush, cfg.NsqlookupdAddr, dispatcher.HandlePush, log)
	if err != nil {
		log.Fatal("create nsq push consumer", zap.Error(err))
	}

	signer := tokens.NewSigner(cfg.HS256Secret, accessTokenTTL)
	authn := middleware.NewAuth(store, signer, log)

	r := chi.NewRouter()
	server.SetupMiddlewares(r, log, httpMetrics)

	health.NewHandlers(log, map[string]health.Check{
		"postgres": store.Ping,
		"redis": func(ctx context.Context) error {
			return redis.Ping(ctx, redisClient)
		},
	}).SetupRoutes(r)

	auth.NewHandlers(log, store, signer, authn).SetupRoutes(r)

	userHandlers := user.NewHandlers(log, store, graph, storage.NewLocal(cfg.ImgDirectory), authn)
	relHandlers := apirel.NewHandlers(log, graph, store, authn)
	r.Route("/users", func(r chi.Router) {
		userHandlers.SetupRoutes(r)
		relHandlers.SetupRoutes(r)
	})

	socket.NewHandlers(log, hub, authn).SetupRoutes(r)
	r.Handle("/img/*", http.StripPrefix("/img/", http.FileServer(http.Dir(cfg.ImgDirectory))))

	srv := server.New(r, ":"+cfg.AppPort)
	go func() {
		log.Info("starting http server", zap.String("addr", srv.Addr), zap.String("server_id", cfg.ServerID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server run failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	socketConsumer.Stop()
	pushConsumer.Stop()
	hub.Close()
	log.Info("server exited")
}
