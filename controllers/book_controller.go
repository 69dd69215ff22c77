package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"Gin_postgres_redis_library/app"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"

	"github.com/gin-gonic/gin"
)

type BookController struct{ *Srv }

func NewBookController(s *Srv) *BookController { return &BookController{Srv: s} }

type bookInput struct {
	ISBN          *string `json:"isbn"`
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	Category      *string `json:"category"`
	PublishedYear *int    `json:"publishedYear" binding:"omitempty,min=0,max=9999"`
	TotalQuantity *int    `json:"totalQuantity" binding:"omitempty,min=0"`
}

// POST /api/books
func (bc *BookController) CreateBook(c *gin.Context) {
	var in bookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	if in.Title == nil || *in.Title == "" || in.Author == nil || *in.Author == "" {
		c.JSON(http.StatusBadRequest, app.H{"error": "title and author are required"})
		return
	}
	b := &models.Book{Title: *in.Title, Author: *in.Author}
	if in.ISBN != nil {
		b.ISBN = *in.ISBN
	}
	if in.Category != nil {
		b.Category = *in.Category
	}
	if in.PublishedYear != nil {
		b.PublishedYear = *in.PublishedYear
	}
	if in.TotalQuantity != nil {
		b.TotalQuantity = *in.TotalQuantity
	}
	if err := bc.Repo.CreateBook(c.Request.Context(), b); err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	bc.dashboardChanged(c.Request.Context())
	c.JSON(http.StatusCreated, b)
}

// GET /api/books?q=&category=&available=true&page=&size=
func (bc *BookController) ListBooks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))
	available, _ := strconv.ParseBool(c.DefaultQuery("available", "false"))

	res, err := bc.Repo.ListBooks(c.Request.Context(), db.BookQuery{
		Q:         c.Query("q"),
		Category:  c.Query("category"),
		Available: available,
		Page:      page,
		Size:      size,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/books/:id
func (bc *BookController) GetBook(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "book") {
		return
	}
	b, err := bc.Repo.FindBookByID(c.Request.Context(), id)
	if err != nil {
		abortRepoErr(c, err, "book")
		return
	}
	c.JSON(http.StatusOK, b)
}

// PUT /api/books/:id
func (bc *BookController) UpdateBook(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "book") {
		return
	}
	var in bookInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, app.H{"error": err.Error()})
		return
	}
	b, err := bc.Repo.UpdateBook(c.Request.Context(), id, db.BookUpdate{
		ISBN:          in.ISBN,
		Title:         in.Title,
		Author:        in.Author,
		Category:      in.Category,
		PublishedYear: in.PublishedYear,
		TotalQuantity: in.TotalQuantity,
	})
	if errors.Is(err, db.ErrTotalBelowOnLoan) {
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
		return
	}
	if err != nil {
		abortRepoErr(c, err, "book")
		return
	}
	bc.dashboardChanged(c.Request.Context())
	c.JSON(http.StatusOK, b)
}

// DELETE /api/books/:id
func (bc *BookController) DeleteBook(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "book") {
		return
	}
	err := bc.Repo.DeleteBook(c.Request.Context(), id)
	if errors.Is(err, db.ErrBookOnLoan) {
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
		return
	}
	if err != nil {
		abortRepoErr(c, err, "book")
		return
	}
	bc.dashboardChanged(c.Request.Context())
	c.JSON(http.StatusOK, app.H{"ok": true})
}
