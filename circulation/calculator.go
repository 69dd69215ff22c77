package circulation

import (
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// DaysOverdue returns the whole calendar days between due and now, floored at zero.
// Due dates are calendar dates stored at midnight UTC, so due is read in UTC whatever
// location the driver hands it back in; now is read in the clock's own location.
func DaysOverdue(due, now time.Time) int {
	diff := civilDate(now).Sub(dueDay(due))
	if diff <= 0 {
		return 0
	}
	return int(diff / day)
}

// SuggestedFine is days × rate, rounded to cents. Zero for non-positive days.
func SuggestedFine(days int, rate decimal.Decimal) decimal.Decimal {
	if days <= 0 {
		return decimal.Zero
	}
	return rate.Mul(decimal.NewFromInt(int64(days))).Round(2)
}

func dueDay(due time.Time) time.Time { return civilDate(due.UTC()) }

func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
