package api

import (
	"database/sql"
	stdhttp "net/http"

	intconfig "bustix/internal/config"
	"bustix/internal/domain"
	h "bustix/internal/http/handlers"
	"bustix/internal/http/middleware"
	"bustix/internal/logger"
	"bustix/internal/metrics"

	"github.com/gin-gonic/gin"
)

var (
	staff      = []domain.Role{domain.RoleAdmin, domain.RoleConductor}
	passengers = []domain.Role{domain.RolePassenger, domain.RoleAdmin}
)

// NewRouter wires the booking API. db may be nil when the in-memory store is
// used.
func NewRouter(env intconfig.Env, hd h.Handler, db *sql.DB) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Get().Warn("failed to set trusted proxies", "error", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/health/db", h.DBCheck(db))
		api.GET("/routes", h.Routes)

		api.GET("/trips/:id/seats", hd.GetSeatMap)
		api.POST("/payments/notify", hd.PaymentNotify)

		auth := api.Group("", middleware.Auth([]byte(env.JWTSecret)))

		bookings := auth.Group("/bookings")
		bookings.POST("", middleware.RequireRoles(passengers...), hd.CreateBooking)
		bookings.GET("", hd.ListBookings)
		bookings.GET("/stats", middleware.RequireRoles(domain.RoleAdmin), hd.BookingStats)
		bookings.GET("/reference/:reference", hd.GetBookingByReference)
		bookings.GET("/:id", hd.GetBooking)
		bookings.GET("/:id/boarding-pass", hd.GetBoardingPass)
		bookings.GET("/:id/payments", hd.GetBookingPayments)
		bookings.GET("/:id/scans", middleware.RequireRoles(staff...), hd.GetBookingScans)

		payments := auth.Group("/payments")
		payments.GET("", middleware.RequireRoles(domain.RoleAdmin), hd.ListPayments)
		payments.POST("/checkout", middleware.RequireRoles(passengers...), hd.Checkout)
		payments.POST("/manual/:id", middleware.RequireRoles(staff...), hd.ManualPayment)

		cancellations := auth.Group("/cancellations")
		cancellations.POST("", middleware.RequireRoles(passengers...), hd.CreateCancellation)
		cancellations.GET("/mine", hd.MyCancellations)
		cancellations.GET("", middleware.RequireRoles(domain.RoleAdmin), hd.ListCancellations)
		cancellations.GET("/stats", middleware.RequireRoles(domain.RoleAdmin), hd.CancellationStats)
		cancellations.GET("/:id", hd.GetCancellation)
		cancellations.PUT("/:id", middleware.RequireRoles(domain.RoleAdmin), hd.DecideCancellation)

		auth.POST("/verifications", middleware.RequireRoles(staff...), hd.Verify)
	}

	h.SetRouter(r)
	return r
}
