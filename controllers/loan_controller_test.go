package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubReturns struct {
	mu      sync.Mutex
	calls   []decimal.Decimal
	actors  []circulation.Actor
	receipt *circulation.Receipt
	err     error
}

func (s *stubReturns) ProcessReturn(ctx context.Context, loanID string, fine decimal.Decimal) (*circulation.Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fine)
	if a, ok := circulation.ActorFrom(ctx); ok {
		s.actors = append(s.actors, a)
	}
	if s.err != nil {
		return nil, s.err
	}
	r := *s.receipt
	r.LoanID = loanID
	r.FineCharged = fine
	return &r, nil
}

func (s *stubReturns) Assess(loan models.Loan) circulation.Assessment {
	return circulation.DefaultPolicy().Assess(loan.DueDate, time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC))
}

func (s *stubReturns) Policy() circulation.Policy { return circulation.DefaultPolicy() }

type stubLoans struct {
	detail   *models.LoanDetail
	findErr  error
	issueErr error
	issued   []db.IssueInput
	filters  []db.LoanFilter
}

func (s *stubLoans) FindLoanDetail(context.Context, string) (*models.LoanDetail, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.detail, nil
}

func (s *stubLoans) IssueBook(_ context.Context, in db.IssueInput) (*models.LoanDetail, error) {
	s.issued = append(s.issued, in)
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	return &models.LoanDetail{
		Loan:      models.Loan{ID: uuid.NewString(), BookID: in.BookID, UserID: in.UserID, IssueDate: in.IssueDate, DueDate: in.DueDate, Status: models.LoanIssued},
		BookTitle: "Dune",
	}, nil
}

func (s *stubLoans) ListLoans(_ context.Context, f db.LoanFilter) (*db.PagedLoans, error) {
	s.filters = append(s.filters, f)
	return &db.PagedLoans{}, nil
}

type countingDashboards struct{ invalidated int }

func (d *countingDashboards) Invalidate(context.Context) error {
	d.invalidated++
	return nil
}

type stubNotifier struct{ sent []string }

func (n *stubNotifier) Enqueue(_ context.Context, _ string, message string) error {
	n.sent = append(n.sent, message)
	return nil
}

var librarian = circulation.Actor{ID: "5f7c2a8e-1111-4c3b-9a0e-6d1e2f3a4b5c", Username: "lin@library.test", Role: models.RoleLibrarian}

func newLoanRouter(lc *LoanController, actor circulation.Actor) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(app.KeyUserID, actor.ID)
		c.Set(app.KeyRole, actor.Role)
		c.Request = c.Request.WithContext(circulation.WithActor(c.Request.Context(), actor))
	})
	r.POST("/api/loans", lc.Issue)
	r.GET("/api/loans", lc.ListLoans)
	r.GET("/api/loans/:loanId/return", lc.ReturnPreview)
	r.POST("/api/loans/:loanId/return", lc.Return)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func Test_Return_Success_ReturnsReceiptAndRedirect(t *testing.T) {
	// arrange
	returns := &stubReturns{receipt: &circulation.Receipt{NewAvailableQuantity: 3}}
	r := newLoanRouter(NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil), librarian)
	loanID := uuid.NewString()

	// act
	w := postJSON(r, "/api/loans/"+loanID+"/return", `{"fineAmount":"3.00"}`)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Receipt  circulation.Receipt `json:"receipt"`
		Redirect string              `json:"redirect"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/dashboard", body.Redirect)
	assert.Equal(t, loanID, body.Receipt.LoanID)
	assert.Equal(t, 3, body.Receipt.NewAvailableQuantity)
	require.Len(t, returns.calls, 1)
	assert.Equal(t, "3", returns.calls[0].String())
	require.Len(t, returns.actors, 1)
	assert.Equal(t, librarian.ID, returns.actors[0].ID)
}

func Test_Return_FineAmountShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"string", `{"fineAmount":"5.50"}`, "5.5"},
		{"number", `{"fineAmount":2}`, "2"},
		{"missing", `{}`, "0"},
		{"null", `{"fineAmount":null}`, "0"},
		{"empty body", ``, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			returns := &stubReturns{receipt: &circulation.Receipt{}}
			r := newLoanRouter(NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil), librarian)

			// act
			w := postJSON(r, "/api/loans/"+uuid.NewString()+"/return", tc.body)

			// assert
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Len(t, returns.calls, 1)
			assert.Equal(t, tc.want, returns.calls[0].String())
		})
	}
}

func Test_Return_FormPost(t *testing.T) {
	// arrange
	returns := &stubReturns{receipt: &circulation.Receipt{}}
	r := newLoanRouter(NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil), librarian)
	form := url.Values{"fineAmount": {"1.25"}}
	req := httptest.NewRequest(http.MethodPost, "/api/loans/"+uuid.NewString()+"/return", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	// act
	r.ServeHTTP(w, req)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1.25", returns.calls[0].String())
}

func Test_Return_InvalidAmount_BadRequestWithoutCallingWorkflow(t *testing.T) {
	for _, body := range []string{`{"fineAmount":"abc"}`, `{"fineAmount":"-1"}`, `{"fineAmount":-4}`, `{"fineAmount":`} {
		t.Run(body, func(t *testing.T) {
			// arrange
			returns := &stubReturns{receipt: &circulation.Receipt{}}
			r := newLoanRouter(NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil), librarian)

			// act
			w := postJSON(r, "/api/loans/"+uuid.NewString()+"/return", body)

			// assert
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, returns.calls)
		})
	}
}

func Test_Return_ErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		location string
		message  string
	}{
		{"already returned", circulation.ErrNotFoundOrAlreadyReturned, http.StatusSeeOther, "/api/dashboard", ""},
		{"invalid", fmt.Errorf("%w: fine amount must not be negative", circulation.ErrInvalidInput), http.StatusBadRequest, "", "fine amount must not be negative"},
		{"rolled back", fmt.Errorf("%w: %w", circulation.ErrPersistenceFailure, gorm.ErrInvalidTransaction), http.StatusInternalServerError, "", returnFailedMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			returns := &stubReturns{err: tc.err}
			r := newLoanRouter(NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil), librarian)

			// act
			w := postJSON(r, "/api/loans/"+uuid.NewString()+"/return", `{"fineAmount":"0"}`)

			// assert
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.location, w.Header().Get("Location"))
			if tc.message != "" {
				assert.Contains(t, w.Body.String(), tc.message)
			}
			assert.NotContains(t, w.Body.String(), "invalid transaction")
		})
	}
}

func Test_ReturnPreview_ShowsSuggestedFine(t *testing.T) {
	// arrange
	loans := &stubLoans{detail: &models.LoanDetail{
		Loan:         models.Loan{ID: uuid.NewString(), DueDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Status: models.LoanOverdue},
		BookTitle:    "Dune",
		BorrowerName: "Pat",
	}}
	r := newLoanRouter(NewLoanController(loans, &stubReturns{}, &stubNotifier{}, nil), librarian)
	req := httptest.NewRequest(http.MethodGet, "/api/loans/"+loans.detail.ID+"/return", nil)
	w := httptest.NewRecorder()

	// act
	r.ServeHTTP(w, req)

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Loan       models.LoanDetail      `json:"loan"`
		Assessment circulation.Assessment `json:"assessment"`
		Currency   string                 `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Dune", body.Loan.BookTitle)
	assert.Equal(t, 3, body.Assessment.DaysOverdue)
	assert.Equal(t, "3.00", body.Assessment.SuggestedFine.StringFixed(2))
	assert.Equal(t, "$", body.Currency)
}

func Test_ReturnPreview_RedirectsWhenNotReturnable(t *testing.T) {
	cases := map[string]*stubLoans{
		"returned":  {detail: &models.LoanDetail{Loan: models.Loan{Status: models.LoanReturned}}},
		"not found": {findErr: gorm.ErrRecordNotFound},
	}
	for name, loans := range cases {
		t.Run(name, func(t *testing.T) {
			// arrange
			r := newLoanRouter(NewLoanController(loans, &stubReturns{}, &stubNotifier{}, nil), librarian)
			req := httptest.NewRequest(http.MethodGet, "/api/loans/"+uuid.NewString()+"/return", nil)
			w := httptest.NewRecorder()

			// act
			r.ServeHTTP(w, req)

			// assert
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/api/dashboard", w.Header().Get("Location"))
		})
	}
	t.Run("malformed id", func(t *testing.T) {
		r := newLoanRouter(NewLoanController(&stubLoans{}, &stubReturns{}, &stubNotifier{}, nil), librarian)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/loans/not-a-loan/return", nil))
		assert.Equal(t, http.StatusSeeOther, w.Code)
	})
}

func Test_Issue_DefaultsDueDateAndNotifies(t *testing.T) {
	// arrange
	loans, notifier := &stubLoans{}, &stubNotifier{}
	lc := NewLoanController(loans, &stubReturns{}, notifier, nil)
	lc.now = func() time.Time { return time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC) }
	r := newLoanRouter(lc, librarian)
	body := fmt.Sprintf(`{"bookId":%q,"userId":%q}`, uuid.NewString(), uuid.NewString())

	// act
	w := postJSON(r, "/api/loans", body)

	// assert
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Len(t, loans.issued, 1)
	assert.Equal(t, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), loans.issued[0].DueDate)
	assert.Equal(t, 5, loans.issued[0].MaxActiveLoans)
	require.NotNil(t, loans.issued[0].IssuedBy)
	assert.Equal(t, librarian.ID, *loans.issued[0].IssuedBy)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0], "15 May 2024")
}

func Test_Issue_OutOfStockConflicts(t *testing.T) {
	// arrange
	loans, notifier := &stubLoans{issueErr: circulation.ErrOutOfStock}, &stubNotifier{}
	r := newLoanRouter(NewLoanController(loans, &stubReturns{}, notifier, nil), librarian)
	body := fmt.Sprintf(`{"bookId":%q,"userId":%q}`, uuid.NewString(), uuid.NewString())

	// act
	w := postJSON(r, "/api/loans", body)

	// assert
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, notifier.sent)
}

func Test_Circulation_InvalidatesDashboardOnlyAfterWrites(t *testing.T) {
	// arrange
	dash := &countingDashboards{}
	returns := &stubReturns{receipt: &circulation.Receipt{}}
	lc := NewLoanController(&stubLoans{}, returns, &stubNotifier{}, nil).UseDashboardCache(dash)
	r := newLoanRouter(lc, librarian)
	issue := fmt.Sprintf(`{"bookId":%q,"userId":%q}`, uuid.NewString(), uuid.NewString())

	// act
	issued := postJSON(r, "/api/loans", issue)
	returned := postJSON(r, "/api/loans/"+uuid.NewString()+"/return", `{"fineAmount":"0"}`)
	returns.err = circulation.ErrNotFoundOrAlreadyReturned
	gone := postJSON(r, "/api/loans/"+uuid.NewString()+"/return", `{"fineAmount":"0"}`)

	// assert
	require.Equal(t, http.StatusCreated, issued.Code, issued.Body.String())
	require.Equal(t, http.StatusOK, returned.Code, returned.Body.String())
	require.Equal(t, http.StatusSeeOther, gone.Code)
	assert.Equal(t, 2, dash.invalidated)
}

func Test_ListLoans_PatronSeesOwnLoansOnly(t *testing.T) {
	// arrange
	loans := &stubLoans{}
	patron := circulation.Actor{ID: uuid.NewString(), Role: models.RolePatron}
	r := newLoanRouter(NewLoanController(loans, &stubReturns{}, &stubNotifier{}, nil), patron)
	w := httptest.NewRecorder()

	// act
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/loans?userId=someone-else&status=active", nil))

	// assert
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, loans.filters, 1)
	assert.Equal(t, patron.ID, loans.filters[0].UserID)
	assert.Equal(t, "active", loans.filters[0].Status)
}
