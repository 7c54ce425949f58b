package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/mobilia/admin-gateway/internal/api/handler"
	"github.com/mobilia/admin-gateway/internal/api/middleware"
	"github.com/mobilia/admin-gateway/internal/core/ports"
	"github.com/mobilia/admin-gateway/internal/pkg/config"
)

// Deps bundles everything the router wires together.
type Deps struct {
	Controller ports.AuthController
	Store      ports.SessionStore
	Audit      ports.AuditRepository
	Catalog    handler.CatalogFetcher
	Mongo      *mongo.Database
	Redis      *redis.Client
	Config     *config.Config
	Log        zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("admin_gateway"))

	// --- Dependencies ---
	cookie := handler.CookieOptions{
		Name:   d.Config.Session.CookieName,
		Secure: d.Config.Session.Secure,
		MaxAge: time.Duration(d.Config.Session.MaxAgeHours) * time.Hour,
	}
	authHandler := handler.NewAuthHandler(d.Controller, d.Store, cookie)
	catalogHandler := handler.NewCatalogHandler(d.Controller, d.Catalog)
	auditHandler := handler.NewAuditHandler(d.Audit)
	guard := middleware.NewGuard(d.Store, d.Controller, cookie.Name, d.Config.Guard.Strict, d.Log)

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/logout", authHandler.Logout)
	e.GET("/auth/session", authHandler.Session)

	// --- Guarded admin routes ---
	admin := e.Group("/admin", guard.Middleware())
	admin.GET("/catalog/:resource", catalogHandler.List)
	admin.GET("/audit", auditHandler.List)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(d.Mongo, d.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
