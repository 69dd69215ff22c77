package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const LoanTable = "lib_loans"

type LoanStatus string

const (
	LoanIssued   LoanStatus = "issued"
	LoanOverdue  LoanStatus = "overdue"
	LoanReturned LoanStatus = "returned"
)

// ActiveLoanStatuses are the states a return can start from.
var ActiveLoanStatuses = []LoanStatus{LoanIssued, LoanOverdue}

// Active reports whether the loan still has a copy out.
func (s LoanStatus) Active() bool { return s == LoanIssued || s == LoanOverdue }

// Loan is one physical copy lent to one user. Status returned <=> ActualReturnDate set.
type Loan struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	BookID           string          `gorm:"type:uuid;index;not null" json:"bookId"`
	UserID           string          `gorm:"type:uuid;index;not null" json:"userId"`
	IssueDate        time.Time       `gorm:"not null" json:"issueDate"`
	DueDate          time.Time       `gorm:"index;not null" json:"dueDate"`
	ActualReturnDate *time.Time      `json:"actualReturnDate,omitempty"`
	Status           LoanStatus      `gorm:"size:20;not null;default:'issued';index" json:"status"`
	FineAmount       decimal.Decimal `gorm:"type:numeric(10,2);not null;default:0" json:"fineAmount"`
	IssuedBy         *string         `gorm:"type:uuid" json:"issuedBy,omitempty"`
	ReturnedBy       *string         `gorm:"type:uuid" json:"returnedBy,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (Loan) TableName() string { return LoanTable }

// LoanDetail is a loan joined with its title and borrower, as shown on the return form.
type LoanDetail struct {
	Loan
	BookTitle    string `json:"bookTitle"`
	BookAuthor   string `json:"bookAuthor"`
	BorrowerName string `json:"borrowerName"`
}
