package app

import (
	"net/http"
	"strings"

	"Gin_postgres_redis_library/circulation"
	"Gin_postgres_redis_library/db"
	"Gin_postgres_redis_library/models"
	"Gin_postgres_redis_library/session"

	"github.com/gin-gonic/gin"
)

const AppSessionCookie = "app_session"

// Context keys set by AuthRequired.
const (
	KeyUserID   = "userID"
	KeyUsername = "username"
	KeyRole     = "role"
)

// RoleOf is the user's stored role, raised to librarian for LIBRARIAN_EMAILS.
func (cfg Config) RoleOf(u *models.User) models.Role {
	email := strings.ToLower(u.Username)
	for _, l := range cfg.LibrarianEmails {
		if email == l {
			return models.RoleLibrarian
		}
	}
	if u.Role == "" {
		return models.RolePatron
	}
	return u.Role
}

func AuthRequired(appSess *session.AppSessionStore, repo *db.Repo, cfg Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ck, err := c.Request.Cookie(AppSessionCookie)
		if err != nil || ck.Value == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := appSess.Get(c.Request.Context(), ck.Value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// the user may have been deleted since the session was issued
		u, err := repo.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = appSess.Delete(c.Request.Context(), ck.Value)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		role := cfg.RoleOf(u)
		c.Set(KeyUserID, u.ID)
		c.Set(KeyUsername, u.Username)
		c.Set(KeyRole, role)
		c.Request = c.Request.WithContext(circulation.WithActor(c.Request.Context(), circulation.Actor{
			ID:       u.ID,
			Username: u.Username,
			Role:     role,
		}))

		c.Next()
	}
}

// LibrarianOnly must run after AuthRequired.
func LibrarianOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(KeyUserID); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		if !IsLibrarian(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

func UserID(c *gin.Context) string { return c.GetString(KeyUserID) }

func IsLibrarian(c *gin.Context) bool {
	v, _ := c.Get(KeyRole)
	role, _ := v.(models.Role)
	return role == models.RoleLibrarian
}
