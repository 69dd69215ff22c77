package controllers

import (
	"errors"
	"net/http"
	"time"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
)

type EBookController struct{ *Srv }

func NewEBookController(s *Srv) *EBookController { return &EBookController{Srv: s} }

// POST /api/ebook-requests {title, author?, note?}
func (ec *EBookController) CreateRequest(c *gin.Context) {
	var in struct {
		Title  string `json:"title" binding:"required,max=255"`
		Author string `json:"author" binding:"max=255"`
		Note   string `json:"note" binding:"max=500"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	req := &models.EBookRequest{UserID: app.UserID(c), Title: in.Title, Author: in.Author, Note: in.Note}
	if err := ec.Repo.CreateEBookRequest(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	ec.dashboardChanged(c.Request.Context())
	c.JSON(http.StatusCreated, req)
}

// GET /api/ebook-requests?status=pending
func (ec *EBookController) ListRequests(c *gin.Context) {
	userID := c.Query("userId")
	if !app.IsLibrarian(c) {
		userID = app.UserID(c)
	}
	items, err := ec.Repo.ListEBookRequests(c.Request.Context(), userID, models.EBookRequestStatus(c.Query("status")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, app.H{"requests": items})
}

// POST /api/ebook-requests/:id/decision {approve: bool}
func (ec *EBookController) Decide(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "request") {
		return
	}
	var in struct {
		Approve *bool `json:"approve" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	req, err := ec.Repo.DecideEBookRequest(c.Request.Context(), id, *in.Approve, app.UserID(c), time.Now())
	if errors.Is(err, db.ErrAlreadyDecided) {
		c.JSON(http.StatusConflict, app.H{"error": err.Error(), "request": req})
		return
	}
	if err != nil {
		abortRepoErr(c, err, "request")
		return
	}
	action := "ebook.rejected"
	if *in.Approve {
		action = "ebook.approved"
	}
	ec.dashboardChanged(c.Request.Context())
	ec.audit(c, action, nil, &req.Title)
	ec.notifyUser(c.Request.Context(), req.UserID, circulation.EBookDecisionMessage(req.Title, *in.Approve))
	c.JSON(http.StatusOK, req)
}
