package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/HayasMoustapha/event-planner-auth/internal/config"
	"github.com/HayasMoustapha/event-planner-auth/internal/database"
	"github.com/HayasMoustapha/event-planner-auth/internal/middleware"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/revocation"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/session"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/permission"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/gate"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/guard"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/security/scanner"
	"github.com/HayasMoustapha/event-planner-auth/internal/modules/user"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/cache"
	pkgcron "github.com/HayasMoustapha/event-planner-auth/internal/pkg/cron"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/mail"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/token"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	cache  cache.Store
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *pkgcron.Scheduler

	sessions   *session.Manager
	registry   *revocation.Registry
	authSvc    *auth.Service
	userSvc    *user.Service
	gate       *gate.Gate
	bruteForce *guard.BruteForceGuard
}

// New initializes the application: config, database, cache, routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg, false)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	// The cache is a soft dependency. Without it the service still issues
	// and validates tokens; the guard fails open and refresh flows fail
	// closed per the revocation fallback.
	var store cache.Store
	if rc, err := cache.Connect(cfg.RedisURL); err != nil {
		logger.Warn("cache unavailable, starting degraded", zap.Error(err))
		store = cache.Disabled{}
	} else {
		store = rc
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(buildCORSConfig(cfg)))

	codec := token.NewCodec(cfg.JWT.Secret, cfg.JWT.RefreshSecretValue(),
		cfg.JWT.Issuer, cfg.JWT.Audience)

	registry := revocation.New(store, db, logger.Named("revocation"))
	permSvc := permission.NewService(db)
	userSvc := user.NewService(db, permSvc)
	sessions := session.NewManager(session.NewStore(db), userSvc, codec, registry,
		logger.Named("sessions"), cfg.JWT.AccessTTL.Std(), cfg.JWT.RefreshTTL.Std())

	bruteForce := guard.New(store, logger.Named("guard"),
		cfg.Security.BruteForceThreshold,
		cfg.Security.BruteForceWindow.Std(),
		cfg.Security.BruteForceLockout.Std())
	sigScanner := scanner.New(cfg.Security.MaxBodyBytes)
	secGate := gate.New(sigScanner, bruteForce, store, logger.Named("gate"),
		cfg.Security.BlockOnHighRiskEnabled())

	mailer := mail.New(cfg.Mail)
	authSvc := auth.NewService(db, userSvc, sessions, bruteForce,
		codec, registry, mailer,
		cfg.JWT.ResetTTL.Std(), cfg.FrontendURL, logger.Named("auth"))

	ctx, cancel := context.WithCancel(context.Background())
	sched := pkgcron.New()
	registerCronJobs(sched, cfg, sessions, registry, logger.Named("cron"))
	go sched.Start(ctx)

	app := &App{
		cfg:        cfg,
		router:     router,
		db:         db,
		cache:      store,
		logger:     logger,
		cancel:     cancel,
		sched:      sched,
		sessions:   sessions,
		registry:   registry,
		authSvc:    authSvc,
		userSvc:    userSvc,
		gate:       secGate,
		bruteForce: bruteForce,
	}
	app.registerRoutes()
	return app, nil
}

func buildCORSConfig(cfg *config.AppConfig) cors.Config {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 && !cfg.IsDev() {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsConfig
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown cleans up background goroutines.
func (a *App) Shutdown() { a.cancel() }

func (a *App) startTime() time.Time { return processStart }

var processStart = time.Now()
