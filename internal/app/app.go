// Package app wires configuration, storage, and the registry into the HTTP
// server and the mail worker.
package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/config"
	"github.com/ordbokapi/notify/internal/middleware"
	"github.com/ordbokapi/notify/internal/modules/subscription"
	"github.com/ordbokapi/notify/internal/pkg/cipher"
	pkgredis "github.com/ordbokapi/notify/internal/pkg/redis"
)

// Registry bundles the dependencies shared by the API process and the mailer
// child: the store connection and the subscriber registry built on it.
type Registry struct {
	Store   *pkgredis.Client
	Service *subscription.Service
}

// NewRegistry connects to Redis and builds the subscriber registry.
func NewRegistry(logger *zap.Logger, cfg *config.AppConfig) (*Registry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	c, err := cipher.New(cfg.Cipher.KeyHex, cfg.Cipher.IVHex, cfg.Cipher.Salt)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}

	store, err := pkgredis.Connect(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	links := subscription.NewLinks(cfg.Links.WebBaseURL, cfg.Links.APIBaseURL)
	svc := subscription.NewService(store, c, links, cfg.Worker.PendingTTL.Std(), logger)

	return &Registry{Store: store, Service: svc}, nil
}

// Close releases the store connection.
func (r *Registry) Close() error { return r.Store.Close() }

// App is the HTTP side of the service.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	reg    *Registry
	logger *zap.Logger
}

// New initializes the application: config → Redis → registry → routes.
func New(logger *zap.Logger, cfg *config.AppConfig, reg *Registry) (*App, error) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))

	app := &App{cfg: cfg, router: router, reg: reg, logger: logger}
	app.registerRoutes()
	return app, nil
}

func corsConfig(cfg *config.AppConfig) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}
	if len(cfg.AllowedOrigins) > 0 && cfg.IsProduction() {
		patterns := cfg.AllowedOrigins
		corsCfg.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsCfg.AllowOriginFunc = func(origin string) bool { return true }
	}
	return corsCfg
}

func (a *App) registerRoutes() {
	a.router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	handler := subscription.NewHandler(a.reg.Service, a.logger)
	handler.RegisterRoutes(a.router.Group(""), middleware.APIKey(a.cfg.APIKey))
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }
