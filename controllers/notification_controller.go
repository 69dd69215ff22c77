package controllers

import (
	"net/http"
	"strconv"

	"Gin_postgres_redis_library/app"

	"github.com/gin-gonic/gin"
)

type NotificationController struct{ *Srv }

func NewNotificationController(s *Srv) *NotificationController {
	return &NotificationController{Srv: s}
}

// GET /api/notifications?unread=true&limit=50
func (nc *NotificationController) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	uid := app.UserID(c)

	items, err := nc.Repo.ListNotifications(c.Request.Context(), uid, unread, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	count, _ := nc.Repo.CountUnread(c.Request.Context(), uid)
	c.JSON(http.StatusOK, app.H{"notifications": items, "unread": count})
}

// POST /api/notifications/:id/read
func (nc *NotificationController) MarkRead(c *gin.Context) {
	id := c.Param("id")
	if !validUUID(c, id, "notification") {
		return
	}
	if err := nc.Repo.MarkNotificationRead(c.Request.Context(), app.UserID(c), id); err != nil {
		abortRepoErr(c, err, "notification")
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/notifications/stream (websocket)
func (nc *NotificationController) Stream(c *gin.Context) {
	uid := app.UserID(c)
	backlog, _ := nc.Repo.ListNotifications(c.Request.Context(), uid, true, 20)
	if err := nc.Hub.Serve(c.Request.Context(), c.Writer, c.Request, uid, backlog); err != nil {
		nc.Logger.Debug("notification stream ended", "user_id", uid, "error", err)
	}
}
