package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/HayasMoustapha/event-planner-auth/internal/middleware"
	authmod "github.com/HayasMoustapha/event-planner-auth/internal/modules/auth"
	sessionmod "github.com/HayasMoustapha/event-planner-auth/internal/modules/auth/session"
	usermod "github.com/HayasMoustapha/event-planner-auth/internal/modules/user"
	"github.com/HayasMoustapha/event-planner-auth/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes() {
	r := a.router

	r.NoRoute(func(c *gin.Context) {
		response.NotFound(c)
	})
	r.NoMethod(func(c *gin.Context) {
		response.MethodNotAllowed(c)
	})

	appInfo := gin.H{
		"name":    "event-planner-auth",
		"version": "1.0.0",
	}

	authMW := middleware.Auth(a.sessions)
	gateMW := middleware.SecurityGate(a.gate, a.cfg.Security.MaxBodyBytes,
		func(c *gin.Context, outcome, detail string) {
			a.authSvc.Audit(c.Request.Context(), "", "", c.ClientIP(), c.Request.UserAgent(), outcome, detail)
		})

	r.GET("/health", a.health)

	api := r.Group(apiPrefix)
	api.Use(middleware.NoStore())
	api.Use(middleware.RateLimit(a.cache))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/uptime", func(c *gin.Context) {
		uptime := time.Since(a.startTime())
		c.JSON(http.StatusOK, gin.H{
			"timestamp": uptime.Milliseconds(),
			"humanize":  humanizeDuration(uptime),
		})
	})

	authmod.NewHandler(a.authSvc).RegisterRoutes(api, gateMW, authMW)
	sessionmod.NewHandler(a.sessions).RegisterRoutes(api, authMW)
	usermod.NewHandler(a.userSvc).RegisterRoutes(api, authMW)

	// Operational surface for admins: scheduler state and per-IP attack
	// history.
	system := api.Group("/system", authMW, middleware.RequirePermission("system:admin"))
	system.GET("/jobs", func(c *gin.Context) {
		response.OK(c, gin.H{"data": a.sched.List()})
	})
	system.GET("/jobs/:name", func(c *gin.Context) {
		result, err := a.sched.GetTask(c.Param("name"))
		if err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, result)
	})
	system.POST("/jobs/:name/run", func(c *gin.Context) {
		if err := a.sched.Run(c.Request.Context(), c.Param("name")); err != nil {
			response.NotFoundMsg(c, err.Error())
			return
		}
		response.OK(c, gin.H{"triggered": true})
	})
	system.GET("/attacks/:ip", func(c *gin.Context) {
		analysis, err := a.gate.RecentAttack(c.Request.Context(), c.Param("ip"))
		if err != nil {
			response.ServiceUnavailable(c)
			return
		}
		if analysis == nil {
			response.NotFoundMsg(c, "no recorded attack for ip")
			return
		}
		response.OK(c, analysis)
	})
}

// health reports liveness of the service and its dependencies. The cache
// being down degrades the report but keeps the status 200: the service
// still serves logins without it.
func (a *App) health(c *gin.Context) {
	ctx := c.Request.Context()
	dbStatus := "ok"
	cacheStatus := "ok"

	if sqlDB, err := a.db.DB(); err != nil {
		dbStatus = "down"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "down"
	}
	if err := a.cache.Ping(ctx); err != nil {
		cacheStatus = "down"
	}

	status := http.StatusOK
	overall := "ok"
	if dbStatus != "ok" {
		status = http.StatusServiceUnavailable
		overall = "down"
	} else if cacheStatus != "ok" {
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status": overall,
		"components": gin.H{
			"database": dbStatus,
			"cache":    cacheStatus,
		},
	})
}
