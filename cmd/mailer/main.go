package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nimasrn/expense-tracker/internal/config"
	"github.com/nimasrn/expense-tracker/internal/mailer"
	"github.com/nimasrn/expense-tracker/internal/processor"
	"github.com/nimasrn/expense-tracker/internal/queue"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/prom"
	"github.com/nimasrn/expense-tracker/pkg/redis"
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
	logger.Info("starting mail dispatcher", "version", version, "commit", commit, "date", date, "driver", cfg.MailDriver)

	opts := cfg.RedisOptions()
	opts.ClientName = cfg.AppName + "-mailer"
	redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, opts)
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}
	defer redisAdap.Close()

	m, closeMailer, err := newMailer(cfg)
	if err != nil {
		logger.Error("failed to create mailer", "error", err)
		return
	}
	defer closeMailer()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	if err := prom.Create(hostname, cfg.AppEnv, cfg.PromNamespace); err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	idempotency := processor.NewIdempotencyService(redisAdap, processor.DefaultIdempotencyConfig())
	otpProcessor := processor.NewOTPMailProcessor(m, idempotency, processor.OTPMailConfig{
		From:    cfg.MailFrom,
		AppName: cfg.AppName,
	})

	consumerName := cfg.QueueConsumerName
	if consumerName == "" {
		consumerName = hostname
	}
	service := processor.NewProcessorService(redisAdap, otpProcessor, processor.ServiceConfig{
		Queue: queue.QueueConfig{
			Name:              cfg.QueueName,
			ConsumerGroup:     cfg.QueueConsumerGroup,
			ConsumerName:      consumerName,
			MaxRetries:        cfg.QueueMaxRetries,
			VisibilityTimeout: cfg.QueueVisibilityTimeout,
			PollInterval:      cfg.QueuePollInterval,
			BatchSize:         cfg.QueueBatchSize,
			MaxLen:            cfg.QueueMaxLen,
			EnableDLQ:         cfg.QueueEnableDLQ,
		},
		Consumers: cfg.QueueConsumers,
		Workers:   cfg.MailWorkers,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := service.Start(); err != nil {
		logger.Error("failed to start processor", "error", err)
		return
	}

	metrics := prom.NewServer(cfg.MetricsURI)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("[metrics-server] listening...", "addr", cfg.MetricsListenAddr, "url", cfg.MetricsURI)
		return metrics.ListenAndServe(cfg.MetricsListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		service.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metrics.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("mail dispatcher stopped", "error", err)
	}
	snap := service.Metrics()
	logger.Info("mail dispatcher exited", "processed", snap.Processed, "failed", snap.Failed, "skipped", snap.Skipped)
	logger.Sync()
}

// newMailer builds the delivery driver selected by MAIL_DRIVER.
func newMailer(cfg *config.Config) (mailer.Mailer, func(), error) {
	switch cfg.MailDriver {
	case "smtp":
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SmtpHost,
			Port:     cfg.SmtpPort,
			Username: cfg.SmtpUsername,
			Password: cfg.SmtpPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		return m, func() {}, nil
	case "relay":
		m, err := mailer.NewRelayMailer(mailer.RelayConfig{
			Relays: []mailer.RelayEndpoint{
				{Name: "primary", URL: cfg.MailRelayPrimaryUrl, Weight: 100},
				{Name: "secondary", URL: cfg.MailRelaySecondaryUrl, Weight: 80},
			},
			Timeout:                 5 * time.Second,
			MaxRetries:              2,
			RetryDelay:              100 * time.Millisecond,
			MaxConns:                100,
			HealthCheckInterval:     30 * time.Second,
			CircuitBreakerThreshold: 5,
			CircuitBreakerTimeout:   time.Minute,
		})
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown mail driver %q", cfg.MailDriver)
	}
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
