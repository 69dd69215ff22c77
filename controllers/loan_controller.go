package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	// where a librarian lands after a return, or when the loan is gone
	dashboardPage = "/dashboard"
	dashboardAPI  = "/api/dashboard"

	returnFailedMessage = "could not record the return, please try again"
)

type ReturnProcessor interface {
	ProcessReturn(ctx context.Context, loanID string, enteredFine decimal.Decimal) (*circulation.Receipt, error)
	Assess(loan models.Loan) circulation.Assessment
	Policy() circulation.Policy
}

type LoanStore interface {
	FindLoanDetail(ctx context.Context, loanID string) (*models.LoanDetail, error)
	IssueBook(ctx context.Context, in db.IssueInput) (*models.LoanDetail, error)
	ListLoans(ctx context.Context, f db.LoanFilter) (*db.PagedLoans, error)
}

type LoanController struct {
	loans      LoanStore
	returns    ReturnProcessor
	notifier   circulation.Notifier
	dashboards DashboardInvalidator
	logger     *slog.Logger
	now        func() time.Time
}

func NewLoanController(loans LoanStore, returns ReturnProcessor, notifier circulation.Notifier, logger *slog.Logger) *LoanController {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoanController{loans: loans, returns: returns, notifier: notifier, logger: logger, now: time.Now}
}

// UseDashboardCache makes issues and returns drop the cached dashboard counters.
func (lc *LoanController) UseDashboardCache(d DashboardInvalidator) *LoanController {
	lc.dashboards = d
	return lc
}

func (lc *LoanController) dashboardChanged(ctx context.Context) {
	if lc.dashboards == nil {
		return
	}
	if err := lc.dashboards.Invalidate(context.WithoutCancel(ctx)); err != nil {
		lc.logger.Warn("dashboard cache not invalidated", "error", err)
	}
}

// POST /api/loans {bookId, userId, dueDate?: "2006-01-02"}
func (lc *LoanController) Issue(c *gin.Context) {
	var in struct {
		BookID  string `json:"bookId" binding:"required,uuid"`
		UserID  string `json:"userId" binding:"required,uuid"`
		DueDate string `json:"dueDate"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	policy := lc.returns.Policy()
	issued := lc.now()
	due := policy.DueDate(issued)
	if in.DueDate != "" {
		d, err := time.Parse(time.DateOnly, in.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, app.H{"error": "dueDate must be YYYY-MM-DD"})
			return
		}
		due = d
	}

	input := db.IssueInput{
		BookID:         in.BookID,
		UserID:         in.UserID,
		IssueDate:      issued,
		DueDate:        due,
		MaxActiveLoans: policy.MaxActiveLoans,
	}
	if actor, ok := circulation.ActorFrom(c.Request.Context()); ok {
		input.IssuedBy = &actor.ID
	}

	loan, err := lc.loans.IssueBook(c.Request.Context(), input)
	switch {
	case err == nil:
	case errors.Is(err, circulation.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	case errors.Is(err, circulation.ErrOutOfStock), errors.Is(err, circulation.ErrLoanLimit):
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
		return
	default:
		abortRepoErr(c, err, "book or borrower")
		return
	}

	lc.dashboardChanged(c.Request.Context())
	if err := lc.notifier.Enqueue(context.WithoutCancel(c.Request.Context()), loan.UserID, circulation.IssueConfirmation(loan.BookTitle, loan.DueDate)); err != nil {
		lc.logger.Warn("issue confirmation not enqueued", "loan_id", loan.ID, "error", err)
	}
	c.JSON(http.StatusCreated, app.H{"loan": loan})
}

// GET /api/loans?status=active|issued|overdue|returned&userId=&bookId=&page=&size=
// Patrons only ever see their own loans.
func (lc *LoanController) ListLoans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	f := db.LoanFilter{
		UserID: c.Query("userId"),
		BookID: c.Query("bookId"),
		Status: c.Query("status"),
		Page:   page,
		Size:   size,
	}
	if !app.IsLibrarian(c) {
		f.UserID = app.UserID(c)
	}

	res, err := lc.loans.ListLoans(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/loans/:loanId/return
// The return form: the loan, its title and borrower, and the suggested fine.
func (lc *LoanController) ReturnPreview(c *gin.Context) {
	loanID := c.Param("loanId")
	if _, err := uuid.Parse(loanID); err != nil {
		c.Redirect(http.StatusSeeOther, dashboardAPI)
		return
	}
	loan, err := lc.loans.FindLoanDetail(c.Request.Context(), loanID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !loan.Status.Active()) {
		c.Redirect(http.StatusSeeOther, dashboardAPI)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	policy := lc.returns.Policy()
	c.JSON(http.StatusOK, app.H{
		"loan":       loan,
		"assessment": lc.returns.Assess(loan.Loan),
		"currency":   policy.Currency,
		"rate":       policy.UnitFineRate,
	})
}

// POST /api/loans/:loanId/return {"fineAmount": "5.00"}, or the same as a form field.
func (lc *LoanController) Return(c *gin.Context) {
	loanID := c.Param("loanId")

	raw, err := fineAmountField(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	fine, err := circulation.ParseFineAmount(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}

	receipt, err := lc.returns.ProcessReturn(c.Request.Context(), loanID, fine)
	switch {
	case err == nil:
		lc.dashboardChanged(c.Request.Context())
		c.JSON(http.StatusOK, app.H{"receipt": receipt, "redirect": dashboardPage})
	case errors.Is(err, circulation.ErrNotFoundOrAlreadyReturned):
		c.Redirect(http.StatusSeeOther, dashboardAPI)
	case errors.Is(err, circulation.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, app.H{"error": returnFailedMessage})
	}
}

// fineAmountField reads fineAmount from a JSON body (string or number) or a form.
func fineAmountField(c *gin.Context) (string, error) {
	if !strings.HasPrefix(c.ContentType(), "application/json") {
		return c.PostForm("fineAmount"), nil
	}
	var body struct {
		FineAmount json.RawMessage `json:"fineAmount"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", err
	}
	v := strings.TrimSpace(string(body.FineAmount))
	switch {
	case v == "" || v == "null":
		return "", nil
	case strings.HasPrefix(v, `"`):
		var s string
		if err := json.Unmarshal(body.FineAmount, &s); err != nil {
			return "", err
		}
		return s, nil
	default:
		return v, nil
	}
}
