package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
)

type FineController struct{ *Srv }

func NewFineController(s *Srv) *FineController { return &FineController{Srv: s} }

// GET /api/fines?status=pending|paid&userId=
func (fc *FineController) ListFines(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	f := db.FineFilter{
		UserID: c.Query("userId"),
		Status: models.FineStatus(c.Query("status")),
		Page:   page,
		Size:   size,
	}
	if !app.IsLibrarian(c) {
		f.UserID = app.UserID(c)
	}
	res, err := fc.Repo.ListFines(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/fines/:id/pay
func (fc *FineController) PayFine(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "fine") {
		return
	}
	fine, err := fc.Repo.PayFine(c.Request.Context(), id, time.Now())
	if errors.Is(err, db.ErrFineAlreadyPaid) {
		c.JSON(http.StatusConflict, app.H{"error": err.Error(), "fine": fine})
		return
	}
	if err != nil {
		abortRepoErr(c, err, "fine")
		return
	}

	fc.dashboardChanged(c.Request.Context())
	fc.audit(c, "fine.paid", &fine.LoanID, nil)
	fc.notifyUser(c.Request.Context(), fine.UserID, fc.Policy.FinePaidMessage(fine.Amount))
	c.JSON(http.StatusOK, app.H{"fine": fine})
}
