package db

import (
	"context"
	"testing"
	"time"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func issueInput(book models.Book, user models.User, limit int) IssueInput {
	issued := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return IssueInput{
		BookID:         book.ID,
		UserID:         user.ID,
		IssueDate:      issued,
		DueDate:        circulation.DefaultPolicy().DueDate(issued),
		MaxActiveLoans: limit,
	}
}

func Test_IssueBook_TakesCopyOffTheShelf(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 2, 1)

	// act
	loan, err := repo.IssueBook(context.Background(), issueInput(book, patron, 5))

	// assert
	require.NoError(t, err)
	assert.Equal(t, models.LoanIssued, loan.Status)
	assert.Equal(t, "Dune", loan.BookTitle)
	assert.Equal(t, "Pat", loan.BorrowerName)
	assert.Equal(t, 0, reloadBook(t, repo.DB, book.ID).AvailableQuantity)
}

func Test_IssueBook_RefusesAtZero(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 1, 0)

	// act
	_, err := repo.IssueBook(context.Background(), issueInput(book, patron, 5))

	// assert
	assert.ErrorIs(t, err, circulation.ErrOutOfStock)
	assert.Equal(t, 0, reloadBook(t, repo.DB, book.ID).AvailableQuantity)
	assert.Zero(t, countRows(t, repo.DB, &models.Loan{}))
}

func Test_IssueBook_LoanLimit(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 5, 5)
	_, err := repo.IssueBook(context.Background(), issueInput(book, patron, 1))
	require.NoError(t, err)

	// act
	_, err = repo.IssueBook(context.Background(), issueInput(book, patron, 1))

	// assert
	assert.ErrorIs(t, err, circulation.ErrLoanLimit)
	assert.Equal(t, 4, reloadBook(t, repo.DB, book.ID).AvailableQuantity)
}

func Test_IssueBook_UnknownBook(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)

	// act
	_, err := repo.IssueBook(context.Background(), issueInput(models.Book{ID: uuid.NewString()}, patron, 5))

	// assert
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func Test_MarkOverdue_FlipsOnlyPastDueIssuedLoans(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 5, 2)
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	late := seedLoan(t, repo.DB, book, patron, now.AddDate(0, 0, -2), models.LoanIssued)
	dueToday := seedLoan(t, repo.DB, book, patron, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), models.LoanIssued)
	already := seedLoan(t, repo.DB, book, patron, now.AddDate(0, 0, -5), models.LoanOverdue)

	// act
	flipped, err := repo.MarkOverdue(context.Background(), now)

	// assert
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, late.ID, flipped[0].ID)
	assert.Equal(t, "Dune", flipped[0].BookTitle)
	assert.Equal(t, models.LoanOverdue, reloadLoan(t, repo.DB, late.ID).Status)
	assert.Equal(t, models.LoanIssued, reloadLoan(t, repo.DB, dueToday.ID).Status)
	assert.Equal(t, models.LoanOverdue, reloadLoan(t, repo.DB, already.ID).Status)

	again, err := repo.MarkOverdue(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func Test_MarkOverdue_DueDateInAnotherZone(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 5, 3)
	eastern := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, eastern)
	dueToday := seedLoan(t, repo.DB, book, patron, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).In(eastern), models.LoanIssued)
	late := seedLoan(t, repo.DB, book, patron, time.Date(2023, 12, 30, 0, 0, 0, 0, time.UTC).In(eastern), models.LoanIssued)

	// act
	flipped, err := repo.MarkOverdue(context.Background(), now)

	// assert
	require.NoError(t, err)
	require.Len(t, flipped, 1)
	assert.Equal(t, late.ID, flipped[0].ID)
	assert.Equal(t, 2, circulation.DaysOverdue(flipped[0].DueDate, now))
	assert.Equal(t, models.LoanIssued, reloadLoan(t, repo.DB, dueToday.ID).Status)
}

func Test_ListLoans_Filters(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	pat := seedUser(t, repo.DB, "Pat", models.RolePatron)
	sam := seedUser(t, repo.DB, "Sam", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 5, 2)
	seedLoan(t, repo.DB, book, pat, dueDate, models.LoanIssued)
	seedLoan(t, repo.DB, book, pat, dueDate, models.LoanReturned)
	seedLoan(t, repo.DB, book, sam, dueDate, models.LoanOverdue)

	// act
	active, err := repo.ListLoans(context.Background(), LoanFilter{Status: "active"})
	require.NoError(t, err)
	mine, err := repo.ListLoans(context.Background(), LoanFilter{UserID: pat.ID})
	require.NoError(t, err)

	// assert
	assert.EqualValues(t, 2, active.Total)
	assert.EqualValues(t, 2, mine.Total)
	for _, l := range mine.Loans {
		assert.Equal(t, pat.ID, l.UserID)
		assert.Equal(t, "Pat", l.BorrowerName)
	}
}

func Test_PayFine_SecondPaymentConflicts(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	book := seedBook(t, repo.DB, "Dune", 1, 1)
	loan := seedLoan(t, repo.DB, book, patron, dueDate, models.LoanReturned)
	fine := models.Fine{ID: uuid.NewString(), LoanID: loan.ID, UserID: patron.ID, Amount: decimal.NewFromInt(4), Reason: "late", Status: models.FinePending}
	require.NoError(t, repo.DB.Create(&fine).Error)
	paidAt := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	// act
	first, err := repo.PayFine(context.Background(), fine.ID, paidAt)
	require.NoError(t, err)
	_, second := repo.PayFine(context.Background(), fine.ID, paidAt)

	// assert
	assert.Equal(t, models.FinePaid, first.Status)
	require.NotNil(t, first.PaidAt)
	assert.ErrorIs(t, second, ErrFineAlreadyPaid)

	_, missing := repo.PayFine(context.Background(), uuid.NewString(), paidAt)
	assert.ErrorIs(t, missing, gorm.ErrRecordNotFound)
}

func Test_UpdateBook_TotalKeepsCopiesOnLoan(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	book := seedBook(t, repo.DB, "Dune", 5, 2)
	grow, shrinkTooFar := 8, 2

	// act
	grown, err := repo.UpdateBook(context.Background(), book.ID, BookUpdate{TotalQuantity: &grow})
	require.NoError(t, err)
	_, tooFar := repo.UpdateBook(context.Background(), book.ID, BookUpdate{TotalQuantity: &shrinkTooFar})

	// assert
	assert.Equal(t, 8, grown.TotalQuantity)
	assert.Equal(t, 5, grown.AvailableQuantity)
	assert.ErrorIs(t, tooFar, ErrTotalBelowOnLoan)
	assert.Equal(t, 8, reloadBook(t, repo.DB, book.ID).TotalQuantity)
}

func Test_DeleteBook_RefusesWithCopiesOut(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	lent := seedBook(t, repo.DB, "Dune", 1, 0)
	seedLoan(t, repo.DB, lent, patron, dueDate, models.LoanIssued)
	idle := seedBook(t, repo.DB, "Emma", 1, 1)

	// act
	errLent := repo.DeleteBook(context.Background(), lent.ID)
	errIdle := repo.DeleteBook(context.Background(), idle.ID)

	// assert
	assert.ErrorIs(t, errLent, ErrBookOnLoan)
	assert.NoError(t, errIdle)
	assert.EqualValues(t, 1, countRows(t, repo.DB, &models.Book{}))
}

func Test_LibraryStats_Counts(t *testing.T) {
	// arrange
	repo := NewRepo(newTestDB(t))
	patron := seedUser(t, repo.DB, "Pat", models.RolePatron)
	a := seedBook(t, repo.DB, "Dune", 3, 1)
	seedBook(t, repo.DB, "Emma", 2, 2)
	seedLoan(t, repo.DB, a, patron, dueDate, models.LoanIssued)
	overdue := seedLoan(t, repo.DB, a, patron, dueDate, models.LoanOverdue)
	require.NoError(t, repo.DB.Create(&models.Fine{
		ID: uuid.NewString(), LoanID: overdue.ID, UserID: patron.ID,
		Amount: decimal.RequireFromString("2.50"), Reason: "late", Status: models.FinePending,
	}).Error)

	// act
	lib, err := repo.LibraryStats(context.Background())
	require.NoError(t, err)
	mine, err := repo.PatronStats(context.Background(), patron.ID)
	require.NoError(t, err)

	// assert
	assert.EqualValues(t, 2, lib.Books)
	assert.EqualValues(t, 5, lib.Copies)
	assert.EqualValues(t, 3, lib.CopiesAvailable)
	assert.EqualValues(t, 2, lib.ActiveLoans)
	assert.EqualValues(t, 1, lib.OverdueLoans)
	assert.Equal(t, "2.50", lib.PendingFineTotal.StringFixed(2))
	assert.EqualValues(t, 2, mine.ActiveLoans)
	assert.EqualValues(t, 1, mine.UnpaidFines)
}
