package handlers

import (
	"net/http"
	"strings"

	"bustix/internal/domain/models"
	"bustix/internal/gateway"

	"github.com/gin-gonic/gin"
)

// PaymentNotify serves the gateway's server-to-server callback. Anything that
// fails authentication is answered 400 and changes nothing.
func (h Handler) PaymentNotify(c *gin.Context) {
	var n gateway.Notification
	if err := c.ShouldBind(&n); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid notification", err)
		return
	}
	res, err := h.Payments.HandleGatewayNotification(c.Request.Context(), n)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"replayed": res.Replayed,
		"ignored":  res.Ignored,
	})
}

// ListPayments serves GET /api/payments for admins.
func (h Handler) ListPayments(c *gin.Context) {
	items, err := h.Payments.List(c.Request.Context(), actor(c),
		models.PaymentOutcome(strings.TrimSpace(c.Query("status"))),
		models.PaymentMethod(strings.TrimSpace(c.Query("method"))),
		pagination(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": items, "count": len(items)})
}

type checkoutRequest struct {
	BookingID int64 `json:"booking_id" binding:"required"`
}

func (h Handler) Checkout(c *gin.Context) {
	var req checkoutRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	form, err := h.Payments.Checkout(c.Request.Context(), actor(c), req.BookingID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

// ManualPayment serves POST /api/payments/manual/:id for cash taken at the
// counter or on the bus.
func (h Handler) ManualPayment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	b, err := h.Payments.ApplyManualVerification(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": b})
}
