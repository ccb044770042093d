package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"bustix/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "rid-1")
	RespondDomainError(c, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondDomainErrorStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.ValidationError{Field: "seat_number", Code: domain.CodeSeatOutOfRange}, http.StatusBadRequest, "SeatOutOfRange"},
		{"not found", domain.NotFoundError{Resource: "trip", Code: domain.CodeTripNotFound}, http.StatusNotFound, "TripNotFound"},
		{"forbidden", domain.ForbiddenError{}, http.StatusForbidden, "Forbidden"},
		{"conflict", domain.ConflictError{Code: domain.CodeSeatTaken}, http.StatusConflict, "SeatTaken"},
		{"policy", domain.PolicyError{Code: domain.CodeNotPaid}, http.StatusUnprocessableEntity, "NotPaid"},
		{"integrity", domain.IntegrityError{Code: domain.CodeSignatureMismatch}, http.StatusBadRequest, "SignatureMismatch"},
		{"wrapped", errors.Join(errors.New("ctx"), domain.ConflictError{Code: domain.CodeStaleState}), http.StatusConflict, "StaleState"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "Internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := respond(t, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, "rid-1", body["request_id"])
		})
	}
}

func TestRespondDomainErrorDetails(t *testing.T) {
	_, body := respond(t, domain.PolicyError{Code: domain.CodeTooCloseToDeparture, HoursToDeparture: domain.Hours(4.5)})
	assert.Equal(t, map[string]any{"hours_to_departure": 4.5}, body["details"])

	_, body = respond(t, domain.ConflictError{Code: domain.CodeAlreadyDecided, Current: "rejected"})
	assert.Equal(t, map[string]any{"current_status": "rejected"}, body["details"])

	_, body = respond(t, errors.New("secret dsn leaked"))
	assert.Equal(t, "internal error", body["error"])
}

func TestRespondDomainErrorRetryable(t *testing.T) {
	w, body := respond(t, domain.RetryableError{Op: "reserve", Err: errors.New("lock wait timeout")})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Equal(t, "TryAgain", body["code"])
	assert.NotContains(t, body["error"], "lock wait")
}
