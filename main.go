package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	apirest "github.com/kasuganosora/vkrpg/api/rest"
	"github.com/kasuganosora/vkrpg/api/sse"
	"github.com/kasuganosora/vkrpg/audit"
	"github.com/kasuganosora/vkrpg/cache"
	"github.com/kasuganosora/vkrpg/config"
	dbadapter "github.com/kasuganosora/vkrpg/db"
	"github.com/kasuganosora/vkrpg/game/item"
	"github.com/kasuganosora/vkrpg/game/market"
	"github.com/kasuganosora/vkrpg/game/player"
	"github.com/kasuganosora/vkrpg/identity"
	applog "github.com/kasuganosora/vkrpg/logger"
	"github.com/kasuganosora/vkrpg/metrics"
	mw "github.com/kasuganosora/vkrpg/middleware"
	"github.com/kasuganosora/vkrpg/model"
	"github.com/kasuganosora/vkrpg/scheduler"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	logger, flush, err := applog.New(applog.Config{
		Debug:       cfg.Server.Debug,
		SentryDSN:   cfg.Log.SentryDSN,
		Environment: cfg.Log.Environment,
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer flush()

	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}
	if cfg.Identity.Mode == config.IdentityModeBypass {
		logger.Warn("identity.mode is bypass; launch param signatures are NOT checked",
			zap.Int64("fallback_identity_id", cfg.Identity.FallbackIdentityID))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Database ----
	db, err := dbadapter.Open(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("db", zap.Error(err))
	}
	if err := model.AutoMigrate(db); err != nil {
		logger.Fatal("db migrate", zap.Error(err))
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		logger.Fatal("cache", zap.Error(err))
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		logger.Fatal("pubsub", zap.Error(err))
	}
	logger.Info("Cache initialized", zap.Bool("redis", cfg.Cache.RedisAddr != ""))

	verifier, err := identity.NewVerifier(cfg.Identity)
	if err != nil {
		logger.Fatal("identity", zap.Error(err))
	}

	// ---- Services ----
	auditSvc := audit.New(db, logger)
	players := player.NewService(db, cfg.Game, logger)
	inventory := item.NewInventoryService(db, logger)
	mkt := market.NewService(db, c, pubsub, cfg.Market, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger, 30*time.Second)
	sweep := func(ctx context.Context) {
		n, err := players.ExpirePremium(ctx, time.Now())
		if err != nil {
			logger.Error("premium sweep failed", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("premium expired", zap.Int64("players", n))
		}
	}
	sched.AddDelay("premium_sweep_boot", time.Second, sweep)
	sched.AddTicker("premium_sweep", cfg.Game.PremiumSweepEvery, sweep)

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware())
	}
	r.Use(mw.CORS(cfg.Security.AllowedOrigins))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	authH := apirest.NewAuthHandler(c, cfg.Security, logger)
	playerH := apirest.NewPlayerHandler(players, auditSvc, logger)
	invH := apirest.NewInventoryHandler(inventory, auditSvc, logger)
	marketH := apirest.NewMarketHandler(mkt, auditSvc, logger)
	adminH := apirest.NewAdminHandler(players, pubsub, sched, auditSvc, logger)
	sseH := sse.NewHandler(pubsub, logger)

	auth := mw.Auth(cfg.Security, c, verifier, players, logger)

	adminAllow, err := mw.ParseAllowList(cfg.Server.AdminAllow)
	if err != nil {
		logger.Fatal("server.admin_allow", zap.Error(err))
	}

	api := r.Group("/api")
	{
		authG := api.Group("/auth", auth)
		authG.POST("/session", authH.Session)
		authG.POST("/logout", authH.Logout)
		authG.POST("/refresh", authH.Refresh)

		playerG := api.Group("/player", auth)
		playerG.GET("", playerH.Profile)
		playerG.POST("/add-gold", playerH.AddGold())
		playerG.POST("/spend-gold", playerH.SpendGold())
		playerG.POST("/add-crystals", playerH.AddCrystals())
		playerG.POST("/spend-crystals", playerH.SpendCrystals())
		playerG.POST("/buy-skin", playerH.BuySkin)
		playerG.POST("/equip-skin", playerH.EquipSkin)

		invG := api.Group("/inventory", auth)
		invG.GET("", invH.List)
		invG.POST("/add", invH.Add)
		invG.POST("/use/:id", invH.Use)
		invG.POST("/remove/:id", invH.Remove)

		// Browsing and the event stream are public.
		api.GET("/market", marketH.List)
		api.GET("/market/events", sseH.ServeMarket)
		marketG := api.Group("/market", auth)
		marketG.GET("/my", marketH.Mine)
		marketG.POST("/sell", marketH.Sell)
		marketG.POST("/buy/:id", marketH.Buy)

		// Client error reporting (no auth: errors may happen before launch params load).
		api.POST("/client-error", func(ctx *gin.Context) {
			var body struct {
				Message string `json:"message" binding:"required,max=2000"`
				Source  string `json:"source"`
				Line    int    `json:"line"`
				Col     int    `json:"col"`
				Stack   string `json:"stack"`
				UA      string `json:"ua"`
			}
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
				return
			}
			logger.Warn("client error",
				zap.String("message", body.Message),
				zap.String("source", body.Source),
				zap.Int("line", body.Line),
				zap.Int("col", body.Col),
				zap.String("stack", body.Stack),
				zap.String("ua", body.UA),
				zap.String("trace_id", mw.GetTraceID(ctx)),
			)
			ctx.JSON(http.StatusOK, gin.H{"status": "received"})
		})

		adminG := api.Group("/admin", mw.IPWhitelist(adminAllow), apirest.AdminAuth(cfg.Server.AdminKey))
		adminG.GET("/players/:id", adminH.GetPlayer)
		adminG.POST("/players/:id/premium", adminH.GrantPremium)
		adminG.POST("/announce", adminH.Announce)
		adminG.GET("/scheduler", adminH.ListSchedulerTasks)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(sseH.Close)
	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	sched.Stop()
	auditSvc.Stop(shutdownCtx)
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
