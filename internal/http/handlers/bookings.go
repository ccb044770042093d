package handlers

import (
	"net/http"
	"strings"

	"bustix/internal/domain/models"
	"bustix/internal/services"

	"github.com/gin-gonic/gin"
)

type createBookingRequest struct {
	TripID     int64            `json:"trip_id" binding:"required"`
	SeatNumber int              `json:"seat_number"`
	Passenger  models.Passenger `json:"passenger"`
	AmountDue  int64            `json:"amount_due"`
	PayOnBus   bool             `json:"pay_on_bus"`
}

// CreateBooking serves POST /api/bookings. An Idempotency-Key header makes
// retries safe.
func (h Handler) CreateBooking(c *gin.Context) {
	var req createBookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := h.Reservations.Reserve(c.Request.Context(), actor(c), services.ReserveInput{
		TripID:         req.TripID,
		SeatNumber:     req.SeatNumber,
		Passenger:      req.Passenger,
		AmountDue:      req.AmountDue,
		PayOnBus:       req.PayOnBus,
		IdempotencyKey: strings.TrimSpace(c.GetHeader("Idempotency-Key")),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"booking": b})
}

func (h Handler) ListBookings(c *gin.Context) {
	items, err := h.Bookings.List(c.Request.Context(), actor(c), services.BookingQuery{
		TripID: queryInt64(c, "trip_id"),
		Status: models.PaymentStatus(strings.TrimSpace(c.Query("status"))),
		Page:   pagination(c),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": items, "count": len(items)})
}

func (h Handler) BookingStats(c *gin.Context) {
	stats, err := h.Bookings.Stats(c.Request.Context(), actor(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handler) GetBooking(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.Bookings.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

func (h Handler) GetBookingByReference(c *gin.Context) {
	b, err := h.Bookings.GetByReference(c.Request.Context(), actor(c), c.Param("reference"))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}

func (h Handler) GetBookingPayments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	items, err := h.Bookings.Payments(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": items})
}

func (h Handler) GetBookingScans(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	items, err := h.Bookings.Scans(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": items})
}

// GetBoardingPass streams the PDF boarding pass.
func (h Handler) GetBoardingPass(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	pdf, filename, err := h.Bookings.BoardingPass(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
