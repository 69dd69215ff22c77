package db

import (
	"fmt"
	"log"
	"os"

	"Gin_postgres_redis_library/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN prefers DATABASE_URL and falls back to the DB_* variables.
func DSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
}

func ConnectDB(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Println("Database connected")
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{}, &models.Credential{}, &models.Invite{},
		&models.Book{}, &models.Loan{}, &models.Fine{},
		&models.Notification{}, &models.EBookRequest{}, &models.AuditLog{},
	); err != nil {
		return err
	}

	// the overdue sweep only looks at issued loans
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_issued_due_date
	  ON %s (due_date)
	  WHERE status = 'issued';
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	// active loans per borrower, for the loan limit
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_active_by_user
	  ON %s (user_id)
	  WHERE status IN ('issued', 'overdue');
	`, models.LoanTable, models.LoanTable)).Error; err != nil {
		return err
	}

	// one fine per loan
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_per_loan
	  ON %s (loan_id);
	`, models.FineTable, models.FineTable)).Error; err != nil {
		return err
	}

	return nil
}
