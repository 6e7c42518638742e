package repository

import (
	"context"
	"testing"

	"github.com/nimasrn/expense-tracker/internal/model"
	"github.com/nimasrn/expense-tracker/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), pg.GormConfig())
	require.NoError(t, err)

	// every new connection to :memory: is a fresh database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&UserEntity{}, &TransactionEntity{}))

	return pg.New(db, db)
}

func createUser(t *testing.T, repo *UserRepository, email string) *model.User {
	u, err := repo.Create(context.Background(), &model.User{
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: "digest",
	})
	require.NoError(t, err)
	return u
}
