package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"bustix/internal/domain"
	"bustix/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	userIDKey   = "userID"
	userRoleKey = "userRole"
)

// Claims is the identity carried by a bearer token.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor.
func IssueToken(secret []byte, actor domain.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		UserID: int64(actor.ID),
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, raw string) (domain.Actor, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Actor{}, err
	}
	if claims.UserID <= 0 {
		return domain.Actor{}, errors.New("token has no user_id")
	}
	return domain.Actor{ID: domain.ID(claims.UserID), Role: domain.ParseRole(claims.Role)}, nil
}

// Auth requires a valid bearer token and stores the caller on the context.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		actor, err := parseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			logger.Security(c.Request.Context()).Warn("rejected bearer token", "error", err, "ip", c.ClientIP())
			abortUnauthorized(c, "invalid token")
			return
		}
		c.Set(userIDKey, int64(actor.ID))
		c.Set(userRoleKey, string(actor.Role))
		c.Request = c.Request.WithContext(logger.ContextWithActorID(c.Request.Context(), int64(actor.ID)))
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="bustix"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":      msg,
		"code":       "Unauthorized",
		"request_id": GetRequestID(c),
	})
}

// ActorFrom returns the caller stored by Auth. The zero Actor means anonymous.
func ActorFrom(c *gin.Context) domain.Actor {
	return domain.Actor{
		ID:   domain.ID(c.GetInt64(userIDKey)),
		Role: domain.ParseRole(c.GetString(userRoleKey)),
	}
}

// SetActor is used by tests that bypass token parsing.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(userIDKey, int64(actor.ID))
	c.Set(userRoleKey, string(actor.Role))
}
