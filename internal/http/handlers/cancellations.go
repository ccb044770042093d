package handlers

import (
	"net/http"
	"strings"

	"bustix/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type createCancellationRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	Reason    string `json:"reason"`
}

func (h Handler) CreateCancellation(c *gin.Context) {
	var req createCancellationRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	out, err := h.Cancellations.RequestCancellation(c.Request.Context(), actor(c), req.BookingID, req.Reason)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"cancellation": out})
}

func (h Handler) MyCancellations(c *gin.Context) {
	items, err := h.Cancellations.Mine(c.Request.Context(), actor(c), pagination(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancellations": items})
}

func (h Handler) ListCancellations(c *gin.Context) {
	status := models.CancellationStatus(strings.TrimSpace(c.Query("status")))
	items, err := h.Cancellations.List(c.Request.Context(), actor(c), status, pagination(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancellations": items})
}

func (h Handler) CancellationStats(c *gin.Context) {
	stats, err := h.Cancellations.Stats(c.Request.Context(), actor(c))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h Handler) GetCancellation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	out, err := h.Cancellations.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancellation": out})
}

type decideRequest struct {
	Decision models.Decision `json:"decision" binding:"required"`
	Remarks  string          `json:"remarks"`
}

// DecideCancellation serves PUT /api/cancellations/:id.
func (h Handler) DecideCancellation(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req decideRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := h.Cancellations.Decide(c.Request.Context(), actor(c), id, req.Decision, req.Remarks)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
