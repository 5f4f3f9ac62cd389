package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/domain"
)

// currentUser returns the caller identity set by the auth middleware. A
// zero identity means the route was reached without authentication.
func currentUser(c *gin.Context) (int, error) {
	userID := c.GetInt("userID")
	if userID <= 0 {
		return 0, domain.ErrUnauthorized
	}
	return userID, nil
}

// respondError maps domain sentinels to HTTP statuses. Anything unmapped is
// an internal error; details stay in the logs, not the response.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
