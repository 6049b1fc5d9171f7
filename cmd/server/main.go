package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ordbokapi/notify/internal/app"
	"github.com/ordbokapi/notify/internal/config"
	"github.com/ordbokapi/notify/internal/modules/mailer"
	"github.com/ordbokapi/notify/internal/pkg/applog"
	"github.com/ordbokapi/notify/internal/pkg/mail"
	"github.com/ordbokapi/notify/internal/pkg/supervisor"
	tpl "github.com/ordbokapi/notify/internal/pkg/template"
)

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "Path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := zap.NewProduction()
		fallback.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := applog.New(cfg.IsProduction())
	if err != nil {
		logger, _ = zap.NewProduction()
		logger.Warn("log pipeline unavailable, fallback to zap production logger", zap.Error(err))
	}
	defer logger.Sync()

	if supervisor.IsMailer() {
		runMailer(logger.Named("mailer"), cfg)
		return
	}
	runAPI(logger, cfg)
}

// runAPI serves HTTP and supervises the mailer child.
func runAPI(logger *zap.Logger, cfg *config.AppConfig) {
	reg, err := app.NewRegistry(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize registry", zap.Error(err))
	}
	defer reg.Close()

	application, err := app.New(logger, cfg, reg)
	if err != nil {
		logger.Fatal("failed to initialize app", zap.Error(err))
	}

	sup := supervisor.New(logger, supervisor.Options{})
	if err := sup.Start(); err != nil {
		logger.Fatal("failed to start mailer child", zap.Error(err))
	}

	srv := &http.Server{
		Addr:    application.Addr(),
		Handler: application.Router(),
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	sup.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("forced shutdown", zap.Error(err))
	}
	logger.Info("server exited")
}

// runMailer is the supervised child: it drains the email queue until told to
// stop. When the mail transport is unreachable the child exits with the code
// the supervisor backs off on.
func runMailer(logger *zap.Logger, cfg *config.AppConfig) {
	reg, err := app.NewRegistry(logger, cfg)
	if err != nil {
		logger.Fatal("failed to initialize registry", zap.Error(err))
	}
	defer reg.Close()

	sender := mail.New(cfg.Mail)
	if err := sender.Verify(); err != nil {
		logger.Error("mail transport unavailable", zap.Error(err))
		if errors.Is(err, mail.ErrTransport) {
			os.Exit(supervisor.ExitCodeTransport)
		}
		os.Exit(1)
	}

	engine, err := tpl.NewEngine()
	if err != nil {
		logger.Fatal("failed to parse email templates", zap.Error(err))
	}

	worker := mailer.New(reg.Service, sender, engine, logger, mailer.Options{
		PollInterval:       cfg.Worker.PollInterval.Std(),
		Concurrency:        cfg.Worker.Concurrency,
		MaxErrorsPerSecond: cfg.Worker.MaxErrorsPerSecond,
	})
	worker.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down mail worker...")
	worker.Stop()
}
