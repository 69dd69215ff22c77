package circulation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Policy holds the configurable lending constants.
type Policy struct {
	UnitFineRate   decimal.Decimal
	Currency       string
	LoanDays       int
	MaxActiveLoans int
}

func DefaultPolicy() Policy {
	return Policy{
		UnitFineRate:   decimal.RequireFromString("1.00"),
		Currency:       "$",
		LoanDays:       14,
		MaxActiveLoans: 5,
	}
}

// Validate rejects policies that would produce negative fines or zero-length loans.
func (p Policy) Validate() error {
	if p.UnitFineRate.IsNegative() {
		return fmt.Errorf("circulation: unit fine rate %s is negative", p.UnitFineRate)
	}
	if p.LoanDays <= 0 {
		return fmt.Errorf("circulation: loan days must be positive, got %d", p.LoanDays)
	}
	if p.MaxActiveLoans <= 0 {
		return fmt.Errorf("circulation: max active loans must be positive, got %d", p.MaxActiveLoans)
	}
	return nil
}

// Assessment is the calculator's view of a loan on a given day.
type Assessment struct {
	DueDate       time.Time       `json:"dueDate"`
	AssessedOn    time.Time       `json:"assessedOn"`
	DaysOverdue   int             `json:"daysOverdue"`
	SuggestedFine decimal.Decimal `json:"suggestedFine"`
}

func (p Policy) Assess(due, now time.Time) Assessment {
	days := DaysOverdue(due, now)
	return Assessment{
		DueDate:       due,
		AssessedOn:    now,
		DaysOverdue:   days,
		SuggestedFine: SuggestedFine(days, p.UnitFineRate),
	}
}

// DueDate is the calendar date LoanDays after issued, at midnight UTC.
func (p Policy) DueDate(issued time.Time) time.Time {
	return civilDate(issued).AddDate(0, 0, p.LoanDays)
}

func (p Policy) FormatAmount(amount decimal.Decimal) string {
	return p.Currency + amount.StringFixed(2)
}
