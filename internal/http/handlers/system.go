package handlers

import (
	"database/sql"
	"net/http"
	"sync"

	intdb "bustix/internal/db"

	"github.com/gin-gonic/gin"
)

var (
	routerMu sync.RWMutex
	router   *gin.Engine
)

// SetRouter stores the active gin engine for /api/routes.
func SetRouter(r *gin.Engine) {
	routerMu.Lock()
	defer routerMu.Unlock()
	router = r
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// DBCheck reports pool stats; a nil db means the in-memory store is in use.
func DBCheck(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := intdb.Check(c.Request.Context(), db)
		status := http.StatusOK
		if h.Status == "down" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	}
}

func Routes(c *gin.Context) {
	routerMu.RLock()
	r := router
	routerMu.RUnlock()
	if r == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "router not ready"})
		return
	}

	routes := r.Routes()
	out := make([]gin.H, 0, len(routes))
	for _, rt := range routes {
		out = append(out, gin.H{"method": rt.Method, "path": rt.Path})
	}
	c.JSON(http.StatusOK, gin.H{"routes": out})
}
