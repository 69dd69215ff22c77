package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"Gin_postgres_redis_library/app"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const dashboardKeyPrefix = "library:dashboard:"

// DashboardInvalidator drops cached dashboard counters after a write that changes them.
type DashboardInvalidator interface {
	Invalidate(ctx context.Context) error
}

type RedisDashboardCache struct{ rdb redis.UniversalClient }

func NewRedisDashboardCache(rdb redis.UniversalClient) *RedisDashboardCache {
	return &RedisDashboardCache{rdb: rdb}
}

// Invalidate deletes every cached scope, library-wide and per patron.
func (d *RedisDashboardCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := d.rdb.Scan(ctx, cursor, dashboardKeyPrefix+"*", 100).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := d.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

type DashboardController struct{ *Srv }

func NewDashboardController(s *Srv) *DashboardController { return &DashboardController{Srv: s} }

// GET /api/dashboard
// Librarians see library-wide counters, patrons their own.
func (dc *DashboardController) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	scope := "library"
	load := func(ctx context.Context) (any, error) { return dc.Repo.LibraryStats(ctx) }
	if !app.IsLibrarian(c) {
		uid := app.UserID(c)
		scope = "user:" + uid
		load = func(ctx context.Context) (any, error) { return dc.Repo.PatronStats(ctx, uid) }
	}

	key := dashboardKeyPrefix + scope
	if raw, err := dc.Cache.Get(ctx, key).Bytes(); err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
		return
	}

	stats, err := load(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	raw, err := json.Marshal(app.H{"scope": scope, "stats": stats})
	if err != nil {
		c.JSON(http.StatusInternalServerError, app.H{"error": err.Error()})
		return
	}
	if dc.Cfg.DashboardTTL > 0 {
		if err := dc.Cache.Set(ctx, key, raw, dc.Cfg.DashboardTTL).Err(); err != nil {
			dc.Logger.Debug("dashboard not cached", "key", key, "error", err)
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
