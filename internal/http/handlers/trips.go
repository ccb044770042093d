package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetSeatMap serves GET /api/trips/:id/seats.
func (h Handler) GetSeatMap(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	m, err := h.Bookings.SeatMap(c.Request.Context(), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}
