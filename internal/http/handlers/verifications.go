package handlers

import (
	"net/http"
	"strings"

	"bustix/internal/services"

	"github.com/gin-gonic/gin"
)

type verifyRequest struct {
	Reference  string `json:"booking_reference"`
	Credential string `json:"credential"`
}

// Verify serves POST /api/verifications. The outcome is in the body; every
// outcome, including invalid, is a 200.
func (h Handler) Verify(c *gin.Context) {
	var req verifyRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	var (
		res services.VerifyResult
		err error
	)
	switch {
	case strings.TrimSpace(req.Credential) != "":
		res, err = h.Verifications.VerifyCredential(c.Request.Context(), actor(c), req.Credential)
	case strings.TrimSpace(req.Reference) != "":
		res, err = h.Verifications.Verify(c.Request.Context(), actor(c), req.Reference)
	default:
		respondError(c, http.StatusBadRequest, "ValidationFailed", "booking_reference or credential is required", nil)
		return
	}
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
