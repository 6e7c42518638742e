package config

import (
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
)

var config *Config

// Config holds every configuration value of the api, mailer and cli binaries.
// Nothing else should read the environment directly.
type Config struct {
	AppEnv   string `env:"APP_ENV,default=dev"`
	AppName  string `env:"APP_NAME,default=expense_tracker"`
	AppDebug bool   `env:"APP_DEBUG,default=false"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	HttpListenAddr         string        `env:"HTTP_LISTEN_ADDR,default=:8080"`
	HttpBaseRequestUrl     string        `env:"HTTP_BASE_REQUEST_URI"`
	HttpServerReadTimeout  time.Duration `env:"HTTP_SERVER_READ_TIMEOUT,default=2500ms"`
	HttpServerWriteTimeout time.Duration `env:"HTTP_SERVER_WRITE_TIMEOUT,default=5s"`
	HttpRequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT,default=5s"`

	MetricsListenAddr string `env:"METRICS_LISTEN_ADDR,default=:9090"`
	MetricsURI        string `env:"METRICS_URI,default=/metrics"`
	PromNamespace     string `env:"PROM_NAMESPACE,default=expense_tracker"`

	PostgresReadHost     string `env:"POSTGRES_READ_HOST"`
	PostgresReadPort     string `env:"POSTGRES_READ_PORT,default=5432"`
	PostgresReadUser     string `env:"POSTGRES_READ_USER"`
	PostgresReadPassword string `env:"POSTGRES_READ_PASSWORD"`
	PostgresReadDatabase string `env:"POSTGRES_READ_DBNAME"`

	PostgresWriteHost     string `env:"POSTGRES_WRITE_HOST"`
	PostgresWritePort     string `env:"POSTGRES_WRITE_PORT,default=5432"`
	PostgresWriteUser     string `env:"POSTGRES_WRITE_USER"`
	PostgresWritePassword string `env:"POSTGRES_WRITE_PASSWORD"`
	PostgresWriteDatabase string `env:"POSTGRES_WRITE_DBNAME"`

	RedisAddr               string `env:"REDIS_ADDR,default=localhost:6379"`
	RedisUsername           string `env:"REDIS_USER"`
	RedisPassword           string `env:"REDIS_PASS"`
	RedisDatabase           int    `env:"REDIS_DATABASE,default=0"`
	RedisUniversalKeyPrefix string `env:"REDIS_UNIVERSAL_KEY_PREFIX,default=expense:"`

	JwtSecret           string        `env:"JWT_SECRET"`
	JwtExpiration       time.Duration `env:"JWT_EXPIRATION,default=24h"`
	GoogleJwtExpiration time.Duration `env:"GOOGLE_JWT_EXPIRATION,default=48h"`
	GoogleClientID      string        `env:"GOOGLE_CLIENT_ID"`
	BcryptCost          int           `env:"BCRYPT_COST,default=10"`

	OtpExpireMinutes   int           `env:"OTP_EXPIRE_MINUTES,default=5"`
	OtpRequestCooldown time.Duration `env:"OTP_REQUEST_COOLDOWN,default=60s"`

	QueueName              string        `env:"QUEUE_NAME,default=mail:otp"`
	QueueConsumerGroup     string        `env:"QUEUE_CONSUMER_GROUP,default=mailer"`
	QueueConsumerName      string        `env:"QUEUE_CONSUMER_NAME"`
	QueueConsumers         int           `env:"QUEUE_CONSUMERS,default=2"`
	QueueMaxRetries        int           `env:"QUEUE_MAX_RETRIES,default=5"`
	QueueVisibilityTimeout time.Duration `env:"QUEUE_VISIBILITY_TIMEOUT,default=30s"`
	QueuePollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL,default=500ms"`
	QueueBatchSize         int64         `env:"QUEUE_BATCH_SIZE,default=10"`
	QueueMaxLen            int64         `env:"QUEUE_MAX_LEN,default=100000"`
	QueueEnableDLQ         bool          `env:"QUEUE_ENABLE_DLQ,default=true"`

	MailDriver            string `env:"MAIL_DRIVER,default=relay"`
	MailFrom              string `env:"MAIL_FROM,default=no-reply@expense-tracker.local"`
	MailWorkers           int    `env:"MAIL_WORKERS,default=4"`
	SmtpHost              string `env:"SMTP_HOST"`
	SmtpPort              int    `env:"SMTP_PORT,default=587"`
	SmtpUsername          string `env:"SMTP_USERNAME"`
	SmtpPassword          string `env:"SMTP_PASSWORD"`
	MailRelayPrimaryUrl   string `env:"MAIL_RELAY_PRIMARY_URL,default=http://localhost:8025"`
	MailRelaySecondaryUrl string `env:"MAIL_RELAY_SECONDARY_URL"`
}

func Load(path string) error {
	logger.Info("loading configs..", "path", path)
	c := &Config{}
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return errors.Wrapf(err, "failed to load configuration file %s", path)
		}
	}

	if _, err := env.UnmarshalFromEnviron(c); err != nil {
		return errors.Wrap(err, "failed to map env variables to Configuration object")
	}

	if err := c.Validate(); err != nil {
		return err
	}

	config = c
	return nil
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Config) {
	config = c
}

func Get() *Config {
	if config == nil {
		logger.Panic("Config is not initialized")
	}
	return config
}

func (c *Config) Validate() error {
	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.OtpExpireMinutes <= 0 {
		return errors.Errorf("OTP_EXPIRE_MINUTES must be positive, got %d", c.OtpExpireMinutes)
	}
	switch c.MailDriver {
	case "smtp":
		if c.SmtpHost == "" {
			return errors.New("SMTP_HOST must be set when MAIL_DRIVER=smtp")
		}
	case "relay":
		if c.MailRelayPrimaryUrl == "" {
			return errors.New("MAIL_RELAY_PRIMARY_URL must be set when MAIL_DRIVER=relay")
		}
	default:
		return errors.Errorf("unknown MAIL_DRIVER %q", c.MailDriver)
	}
	return nil
}

func (c *Config) OtpTTL() time.Duration {
	return time.Duration(c.OtpExpireMinutes) * time.Minute
}

func (c *Config) PostgresRead() pg.Config {
	return pg.Config{
		Host:     c.PostgresReadHost,
		Port:     c.PostgresReadPort,
		User:     c.PostgresReadUser,
		Password: c.PostgresReadPassword,
		Database: c.PostgresReadDatabase,
	}
}

func (c *Config) PostgresWrite() pg.Config {
	return pg.Config{
		Host:     c.PostgresWriteHost,
		Port:     c.PostgresWritePort,
		User:     c.PostgresWriteUser,
		Password: c.PostgresWritePassword,
		Database: c.PostgresWriteDatabase,
	}
}

func (c *Config) RedisOptions() *goredis.UniversalOptions {
	return &goredis.UniversalOptions{
		Addrs:    []string{c.RedisAddr},
		Username: c.RedisUsername,
		Password: c.RedisPassword,
		DB:       c.RedisDatabase,
	}
}
