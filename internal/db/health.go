package db

import (
	"context"
	"database/sql"
	"time"
)

// Health is the pool snapshot reported by the health endpoint.
type Health struct {
	Status          string `json:"status"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
	WaitCount       int64  `json:"wait_count"`
	Error           string `json:"error,omitempty"`
}

// Check pings the pool with a short deadline and reports its stats.
func Check(ctx context.Context, conn *sql.DB) Health {
	if conn == nil {
		return Health{Status: "disabled"}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	stats := conn.Stats()
	h := Health{
		Status:          "ok",
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
	}
	if err := conn.PingContext(pingCtx); err != nil {
		h.Status = "down"
		h.Error = err.Error()
	}
	return h
}
