package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	apirest "github.com/agathamc/regserver/api/rest"
	"github.com/agathamc/regserver/audit"
	"github.com/agathamc/regserver/cache"
	"github.com/agathamc/regserver/chat"
	"github.com/agathamc/regserver/config"
	"github.com/agathamc/regserver/db"
	"github.com/agathamc/regserver/idverify"
	"github.com/agathamc/regserver/metrics"
	mw "github.com/agathamc/regserver/middleware"
	"github.com/agathamc/regserver/model"
	"github.com/agathamc/regserver/mojang"
	"github.com/agathamc/regserver/regflow"
	"github.com/agathamc/regserver/scheduler"
	"github.com/agathamc/regserver/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
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
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	// Warn loudly if admin endpoints will be disabled.
	if cfg.Server.AdminKey == "" {
		logger.Warn("server.admin_key is not set; admin endpoints are disabled")
	}

	// ---- Database ----
	mgr := db.NewManager(cfg.Database, logger)
	if err := mgr.Init(); err != nil {
		log.Fatalf("db: %v", err)
	}
	defer mgr.Close()
	if err := model.AutoMigrate(mgr.DB()); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	gw := db.NewGateway(mgr, logger)
	logger.Info("DB initialized")

	// ---- Audit ----
	auditSvc := audit.New(mgr.DB(), logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache ----
	c, err := cache.New(cache.Config{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
	})
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Metrics ----
	m := metrics.New(func() float64 { return float64(mgr.Reconnects()) })

	// ---- Services ----
	store := regflow.NewStore(gw, cfg.Database)
	flowSvc := regflow.NewService(store, logger)
	chainClient := mojang.NewClient(cfg.OAuth, nil, logger)
	initiator := idverify.NewInitiator(store, c, cfg.IDVerify, nil, logger)
	checker := idverify.NewChecker(store)
	sessionSvc := session.NewService(gw, c, logger)
	chatProxy := chat.NewProxy(gw, cfg.Chat, nil, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("db_liveness", time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := mgr.CheckLiveness(ctx); err != nil {
			logger.Warn("db liveness probe failed", zap.Error(err))
		}
	})
	sched.AddTicker("session_cleanup", 5*time.Minute, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		removed, err := sessionSvc.CleanupExpired(ctx)
		if err != nil {
			logger.Warn("session cleanup failed", zap.Error(err))
			return
		}
		if removed > 0 {
			logger.Info("expired sessions removed", zap.Int64("count", removed))
		}
	})

	// ---- Gin HTTP Server ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger), mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	// Health check
	r.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ---- REST API routes ----
	registerH := apirest.NewRegisterHandler(chainClient, flowSvc, auditSvc, m, logger)
	verifyH := apirest.NewVerifyHandler(initiator, checker, auditSvc, m, logger)
	sessionH := apirest.NewSessionHandler(sessionSvc, logger)
	chatH := apirest.NewChatHandler(sessionSvc, chatProxy, logger)
	adminH := apirest.NewAdminHandler(store, mgr, sched, logger)

	r.POST("/finish-mojang", registerH.FinishMojang)
	r.POST("/verify-id", verifyH.VerifyID)
	r.GET("/verify-check", verifyH.VerifyCheck)
	r.POST("/validate", sessionH.Validate)
	r.POST("/chat", chatH.Chat)

	adminG := r.Group("/api/admin")
	adminG.Use(mw.IPWhitelist(cfg.Security.AdminAllowIPs))
	adminG.Use(apirest.AdminAuth(cfg.Server.AdminKey))
	adminG.GET("/status", adminH.Status)
	adminG.GET("/flows", adminH.ListFlows)
	adminG.GET("/flows/:name", adminH.FlowDetail)

	// ---- Registration pages (browser frontend) ----
	if cfg.Server.PagesDir != "" {
		r.NoRoute(func(ctx *gin.Context) {
			path := cfg.Server.PagesDir + ctx.Request.URL.Path
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				ctx.File(path)
				return
			}
			ctx.JSON(404, gin.H{"error": "not found"})
		})
		logger.Info("Serving registration pages", zap.String("dir", cfg.Server.PagesDir))
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("Server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
