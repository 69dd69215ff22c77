package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const FineTable = "lib_fines"

type FineStatus string

const (
	FinePending FineStatus = "pending"
	FinePaid    FineStatus = "paid"
)

type Fine struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	LoanID    string          `gorm:"type:uuid;index;not null" json:"loanId"`
	UserID    string          `gorm:"type:uuid;index;not null" json:"userId"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Reason    string          `gorm:"size:500;not null" json:"reason"`
	Status    FineStatus      `gorm:"size:20;not null;default:'pending';index" json:"status"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func (Fine) TableName() string { return FineTable }
