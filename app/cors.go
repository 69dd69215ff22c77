package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// useCORS lets the web client and every passkey origin call the API with the session cookie.
func useCORS(r *gin.Engine, origins []string) {
	seen := make(map[string]bool, len(origins))
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o != "" && !seen[o] {
			seen[o] = true
			allowed = append(allowed, o)
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type"},
		ExposeHeaders:    []string{"Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
