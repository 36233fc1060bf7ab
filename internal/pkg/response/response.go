package response

import (
	"errors"
	"net/http"

	"stayreserve/internal/domain"

	"github.com/gin-gonic/gin"
)

// RetryAfterSeconds is advertised to clients told the apartment is busy.
const RetryAfterSeconds = "1"

func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
	})
}

func Error(c *gin.Context, statusCode int, code string, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func ErrorWithDetails(c *gin.Context, statusCode int, code string, message string, details any) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// FromError writes the envelope for a domain error. Anything unrecognised is a 500
// whose message does not leak the cause.
func FromError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRange):
		Error(c, http.StatusBadRequest, "INVALID_RANGE", err.Error())
	case errors.Is(err, domain.ErrInvalidPrice):
		Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, domain.ErrApartmentUnavailable):
		Error(c, http.StatusUnprocessableEntity, "APARTMENT_UNAVAILABLE", "Apartment is not available for booking")
	case errors.Is(err, domain.ErrDateConflict):
		Error(c, http.StatusConflict, "BOOKING_CONFLICT", "Apartment is already booked for these dates")
	case errors.Is(err, domain.ErrUnauthenticated):
		Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
	case errors.Is(err, domain.ErrForbidden):
		Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, domain.ErrNotFound):
		Error(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, domain.ErrBusy):
		c.Header("Retry-After", RetryAfterSeconds)
		Error(c, http.StatusServiceUnavailable, "BUSY", "Apartment is busy, retry shortly")
	default:
		Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
