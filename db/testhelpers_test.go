package db

import (
	"testing"
	"time"

	"Gin_postgres_redis_library/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a private in-memory SQLite database with the full schema.
// One connection keeps every query on the same memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(conn))
	return conn
}

func seedUser(t *testing.T, conn *gorm.DB, name string, role models.Role) models.User {
	t.Helper()
	u := models.User{ID: uuid.NewString(), Username: name + "@library.test", DisplayName: name, Role: role}
	require.NoError(t, conn.Create(&u).Error)
	return u
}

func seedBook(t *testing.T, conn *gorm.DB, title string, total, available int) models.Book {
	t.Helper()
	b := models.Book{
		ID:                uuid.NewString(),
		Title:             title,
		Author:            "Someone",
		TotalQuantity:     total,
		AvailableQuantity: available,
	}
	require.NoError(t, conn.Create(&b).Error)
	return b
}

func seedLoan(t *testing.T, conn *gorm.DB, book models.Book, user models.User, due time.Time, status models.LoanStatus) models.Loan {
	t.Helper()
	l := models.Loan{
		ID:        uuid.NewString(),
		BookID:    book.ID,
		UserID:    user.ID,
		IssueDate: due.AddDate(0, 0, -14),
		DueDate:   due,
		Status:    status,
	}
	require.NoError(t, conn.Create(&l).Error)
	return l
}

func reloadLoan(t *testing.T, conn *gorm.DB, id string) models.Loan {
	t.Helper()
	var l models.Loan
	require.NoError(t, conn.First(&l, "id = ?", id).Error)
	return l
}

func reloadBook(t *testing.T, conn *gorm.DB, id string) models.Book {
	t.Helper()
	var b models.Book
	require.NoError(t, conn.First(&b, "id = ?", id).Error)
	return b
}

func countRows(t *testing.T, conn *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(model).Count(&n).Error)
	return n
}
