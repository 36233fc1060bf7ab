package booking

import (
	"net/http"
	"strconv"

	"stayreserve/internal/domain"
	"stayreserve/internal/middleware"
	"stayreserve/internal/pkg/response"
	"stayreserve/internal/pkg/validator"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes expects the group to run middleware.JWTAuth; anonymous callers
// reach the handlers and are rejected by the service where identity is required.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/bookings", h.CreateBooking)
	rg.GET("/bookings", h.ListAllBookings)
	rg.GET("/bookings/:id", h.GetBooking)
	rg.DELETE("/bookings/:id", h.DeleteBooking)
	rg.GET("/users/:id/bookings", h.ListUserBookings)

	rg.GET("/apartments/:id/availability", h.CheckAvailability)
	rg.GET("/apartments/:id/busy-dates", h.BusyDates)
}

func (h *Handler) CreateBooking(c *gin.Context) {
	id := middleware.Identity(c)
	if id == nil {
		response.FromError(c, domain.ErrUnauthenticated)
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request", errs)
		return
	}

	r, err := domain.ParseDateRange(req.CheckIn, req.CheckOut)
	if err != nil {
		response.FromError(c, err)
		return
	}

	b, err := h.service.CreateBooking(c.Request.Context(), id, CreateBookingInput{
		ApartmentID: req.ApartmentID,
		GuestID:     req.GuestID,
		Range:       r,
		TotalPrice:  req.TotalPrice,
	})
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"booking": toBookingResponse(b)})
}

func (h *Handler) DeleteBooking(c *gin.Context) {
	removed, err := h.service.DeleteBooking(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !removed {
		response.FromError(c, domain.ErrNotFound)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) GetBooking(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), middleware.Identity(c), c.Param("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"booking": toBookingResponse(b)})
}

// ListUserBookings serves /users/:id/bookings; the id "me" means the caller.
func (h *Handler) ListUserBookings(c *gin.Context) {
	id := middleware.Identity(c)

	var userID int64
	if raw := c.Param("id"); raw == "me" {
		if id == nil {
			response.FromError(c, domain.ErrUnauthenticated)
			return
		}
		userID = id.UserID
	} else {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid user ID")
			return
		}
		userID = parsed
	}

	bookings, err := h.service.ListForUser(c.Request.Context(), id, userID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": toBookingResponses(bookings)})
}

func (h *Handler) ListAllBookings(c *gin.Context) {
	bookings, err := h.service.ListAll(c.Request.Context(), middleware.Identity(c))
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"bookings": toBookingResponses(bookings)})
}

func (h *Handler) CheckAvailability(c *gin.Context) {
	apartmentID, ok := apartmentParam(c)
	if !ok {
		return
	}

	r, err := domain.ParseDateRange(c.Query("check_in"), c.Query("check_out"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	free, err := h.service.CheckAvailability(c.Request.Context(), apartmentID, r)
	if err != nil {
		response.FromError(c, err)
		return
	}
	response.Success(c, http.StatusOK, AvailabilityResponse{
		ApartmentID: apartmentID,
		CheckIn:     r.CheckIn.Format(domain.DateLayout),
		CheckOut:    r.CheckOut.Format(domain.DateLayout),
		Available:   free,
	})
}

func (h *Handler) BusyDates(c *gin.Context) {
	apartmentID, ok := apartmentParam(c)
	if !ok {
		return
	}

	ranges, err := h.service.BusyDates(c.Request.Context(), apartmentID)
	if err != nil {
		response.FromError(c, err)
		return
	}

	out := make([]DateRangeDTO, 0, len(ranges))
	for _, r := range ranges {
		out = append(out, DateRangeDTO{
			CheckIn:  r.CheckIn.Format(domain.DateLayout),
			CheckOut: r.CheckOut.Format(domain.DateLayout),
		})
	}
	response.Success(c, http.StatusOK, BusyDatesResponse{ApartmentID: apartmentID, Ranges: out})
}

func apartmentParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid apartment ID")
		return 0, false
	}
	return id, true
}
