package main

import (
	"os"
	"strings"

	"github.com/nimasrn/expense-tracker/internal/config"
	"github.com/nimasrn/expense-tracker/pkg/logger"
	"github.com/nimasrn/expense-tracker/pkg/pg"
)

// main.go [--env=.env] [--dir=./migrations] [up|status]
func main() {
	err := config.Load(getEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	pgConf := config.Get().PostgresWrite()
	dir := getMigrationPath()

	switch command() {
	case "status":
		err = pg.MigrationStatus(pgConf, dir)
	default:
		err = pg.Migrate(pgConf, dir)
	}
	if err != nil {
		logger.Error("migration: error running migrations", "error", err)
		os.Exit(1)
	}
}

func command() string {
	for _, v := range os.Args[1:] {
		if !strings.HasPrefix(v, "--") {
			return v
		}
	}
	return "up"
}

func getEnvPath() string {
	if p := flagValue("--env="); p != "" {
		return p
	}
	if _, err := os.Stat(".env"); err != nil {
		logger.Warn("no .env file found, using the process environment")
		return ""
	}
	return ".env"
}

func getMigrationPath() string {
	if p := flagValue("--dir="); p != "" {
		return p
	}
	return "./migrations"
}

func flagValue(prefix string) string {
	for _, v := range os.Args {
		if strings.HasPrefix(v, prefix) {
			p := strings.TrimPrefix(v, prefix)
			if _, err := os.Stat(p); err != nil {
				logger.Error("failed to open "+p, "error", err)
				return ""
			}
			return p
		}
	}
	return ""
}
