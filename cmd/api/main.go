package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/expense-tracker/internal/auth"
	"github.com/nimasrn/expense-tracker/internal/config"
	"github.com/nimasrn/expense-tracker/internal/handlers"
	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/nimasrn/expense-tracker/internal/repository"
	"github.com/nimasrn/expense-tracker/internal/services"
	xhttp "github.com/nimasrn/expense-tracker/pkg/http"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"github.com/nimasrn/expense-tracker/pkg/prom"
	"github.com/nimasrn/expense-tracker/pkg/redis"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("invalid log level, keeping default", "level", cfg.LogLevel)
	}
	logger.Info("starting api", "version", version, "commit", commit, "date", date)

	// amounts go over the wire as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true

	opt := xhttp.DefaultServerOption
	opt.ReadTimeout = cfg.HttpServerReadTimeout
	opt.WriteTimeout = cfg.HttpServerWriteTimeout
	opt.RequestTimeout = cfg.HttpRequestTimeout
	s := xhttp.NewServer(opt)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.CompressMiddleware(opt.CompressionLevel))
	s.Use(xhttp.TimeoutMiddleware(opt.RequestTimeout))

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}
	defer db.Close()

	opts := cfg.RedisOptions()
	opts.ClientName = cfg.AppName + "-api"
	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, opts)
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	defer redisAdap.Close()

	mailQueue, err := queue.NewQueue(redisAdap, queue.QueueConfig{
		Name:          cfg.QueueName,
		ConsumerGroup: cfg.QueueConsumerGroup,
		MaxRetries:    cfg.QueueMaxRetries,
		MaxLen:        cfg.QueueMaxLen,
		EnableDLQ:     cfg.QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating mail queue", "error", err)
		return
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	// repositories
	transactionRepo := repository.NewTransactionRepository(db)
	userRepo := repository.NewUserRepository(db)

	// services
	creds := auth.NewCredentials(cfg.JwtSecret, cfg.BcryptCost, cfg.AppName)
	var google services.GoogleVerifier
	if cfg.GoogleClientID != "" {
		google = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	ledgerService := services.NewLedgerService(transactionRepo)
	accountService := services.NewAccountService(userRepo, creds, google, mailQueue, services.NewRedisLimiter(redisAdap), services.AccountConfig{
		TokenTTL:       cfg.JwtExpiration,
		GoogleTokenTTL: cfg.GoogleJwtExpiration,
		OTPTTL:         cfg.OtpTTL(),
		ResetCooldown:  cfg.OtpRequestCooldown,
	})

	// handlers
	r := xhttp.Mount(s.Router, cfg.HttpBaseRequestUrl)
	handlers.RegisterAccountRoutes(r, handlers.NewAccountHandler(accountService))
	handlers.RegisterLedgerRoutes(r, handlers.NewLedgerHandler(ledgerService), creds)
	handlers.RegisterHealthRoutes(r, handlers.NewHealthHandler(map[string]handlers.Pinger{
		"postgres": db,
		"redis":    redisAdap,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := prom.NewServer(cfg.MetricsURI)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ListenAndServe(cfg.HttpListenAddr)
	})
	g.Go(func() error {
		logger.Info("[metrics-server] listening...", "addr", cfg.MetricsListenAddr, "url", cfg.MetricsURI)
		return metrics.ListenAndServe(cfg.MetricsListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown", "error", err)
		}
		return metrics.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("api stopped", "error", err)
	}
	logger.Sync()
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
