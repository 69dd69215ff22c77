package circulation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "02 Jan 2006"

// FineReason is stored on the Fine record.
func FineReason(title string) string {
	return fmt.Sprintf("Late return of book '%s'", title)
}

func (p Policy) FineMessage(title string, amount decimal.Decimal) string {
	return fmt.Sprintf("A fine of %s has been charged for the late return of '%s'.", p.FormatAmount(amount), title)
}

func ReturnConfirmation(title string) string {
	return fmt.Sprintf("Your return of '%s' has been recorded. Thank you!", title)
}

func IssueConfirmation(title string, due time.Time) string {
	return fmt.Sprintf("You borrowed '%s'. Please return it by %s.", title, due.Format(dateLayout))
}

func (p Policy) OverdueReminder(title string, days int, running decimal.Decimal) string {
	return fmt.Sprintf("'%s' is %d day(s) overdue. Fine so far: %s. Please return it as soon as possible.",
		title, days, p.FormatAmount(running))
}

func DueSoonReminder(title string, due time.Time) string {
	return fmt.Sprintf("Reminder: '%s' is due on %s.", title, due.Format(dateLayout))
}

func (p Policy) FinePaidMessage(amount decimal.Decimal) string {
	return fmt.Sprintf("Your payment of %s has been received. Thank you.", p.FormatAmount(amount))
}

func EBookDecisionMessage(title string, approved bool) string {
	if approved {
		return fmt.Sprintf("Your e-book request for '%s' was approved.", title)
	}
	return fmt.Sprintf("Your e-book request for '%s' was declined.", title)
}
