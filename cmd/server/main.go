package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"plaza/internal/app"
	"plaza/internal/config"
	"plaza/internal/handlers"
	"plaza/internal/logging"
	"plaza/internal/middleware"
	"plaza/internal/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx := context.Background()
	gw, err := app.OpenGateway(cfg, logger, false)
	if err != nil {
		sugar.Fatalf("Failed to open gateway: %v", err)
	}
	store, err := app.OpenCache(ctx, cfg, logger)
	if err != nil {
		sugar.Fatalf("Failed to open query cache: %v", err)
	}
	svc := app.NewServices(cfg, gw, store, logger)

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), logging.GinLogger(logger))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode, MaxAge: 7 * 24 * 3600})
	r.Use(sessions.Sessions("plaza_session", sessionStore))

	r.Use(middleware.LoadIdentity(app.Resolver(cfg, gw), logger))

	// 本地存储的图片
	if cfg.Gateway.Driver == "sql" {
		r.Static("/files", cfg.Gateway.BlobDir)
	}

	router.RegisterRoutes(r, router.Handlers{
		Auth:        handlers.NewAuthHandler(gw.Auth, cfg.SiteURL, logger),
		Posts:       handlers.NewPostHandler(svc.Posts),
		Comments:    handlers.NewCommentHandler(svc.Comments),
		Votes:       handlers.NewVoteHandler(svc.Votes),
		Communities: handlers.NewCommunityHandler(svc.Communities, svc.Posts),
	})

	srv := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		MaxHeaderBytes: 1 << 20,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
	go func() {
		sugar.Infof("Server starting on :%s (gateway=%s, cache=%s)", cfg.Port, cfg.Gateway.Driver, cfg.Cache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("Failed to run http server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logger.Info("Server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
