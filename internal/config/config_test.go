package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromFileWithDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=s3cret\nPOSTGRES_WRITE_HOST=db\nOTP_EXPIRE_MINUTES=7\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("POSTGRES_WRITE_HOST")
		os.Unsetenv("OTP_EXPIRE_MINUTES")
	})

	require.NoError(t, Load(path))
	c := Get()

	assert.Equal(t, "s3cret", c.JwtSecret)
	assert.Equal(t, "db", c.PostgresWrite().Host)
	assert.Equal(t, "5432", c.PostgresWrite().Port)
	assert.Equal(t, 7*time.Minute, c.OtpTTL())
	assert.Equal(t, 24*time.Hour, c.JwtExpiration)
	assert.Equal(t, "relay", c.MailDriver)
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{JwtSecret: "x", OtpExpireMinutes: 5, MailDriver: "relay", MailRelayPrimaryUrl: "http://relay"}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.JwtSecret = ""
	assert.ErrorContains(t, c.Validate(), "JWT_SECRET")

	c = base()
	c.MailDriver = "smtp"
	assert.ErrorContains(t, c.Validate(), "SMTP_HOST")

	c = base()
	c.MailDriver = "pigeon"
	assert.ErrorContains(t, c.Validate(), "unknown MAIL_DRIVER")

	c = base()
	c.OtpExpireMinutes = 0
	assert.Error(t, c.Validate())
}
