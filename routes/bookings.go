package routes

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"foodbank-server/models"
	"foodbank-server/services"
)

// RegisterBookingRoutes registers the authenticated booking endpoints.
func RegisterBookingRoutes(router *gin.RouterGroup) {
	router.POST("", createBooking)
	router.GET("", listBookings)
	router.GET("/history", bookingHistory)
	router.GET("/:id", getBooking)
	router.POST("/:id/decide", decideBooking)
	router.POST("/:id/cancel", cancelBooking)
	router.POST("/:id/visited", markBookingVisited)
	router.POST("/:id/no-show", markBookingNoShow)
}

// RegisterBookingTokenRoutes registers the public token endpoints. The
// reschedule token is a bearer credential: it is never logged in full
// and never echoed back except as the fresh token after a reschedule.
func RegisterBookingTokenRoutes(router *gin.RouterGroup) {
	router.GET("/:token", getBookingByToken)
	router.POST("/:token/reschedule", rescheduleByToken)
	router.POST("/:token/cancel", cancelByToken)
}

// createBooking handles self-service, agency and staff bookings.
func createBooking(c *gin.Context) {
	var req models.BookingCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := bookingService.Create(services.CreateParams{
		ClientID:      req.ClientID,
		NewClientName: req.NewClientName,
		SlotID:        req.SlotID,
		Date:          req.Date,
		Note:          req.Note,
	}, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Booking created",
		"booking": booking,
		"token":   booking.RescheduleToken,
	})
}

func listBookings(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}
	filter := services.BookingFilter{Status: status}
	if date := c.Query("date"); date != "" {
		filter.Date = &date
	}
	if raw := c.Query("client_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client_id"})
			return
		}
		filter.ClientIDs = []uint{uint(id)}
	}

	bookings, err := bookingService.List(filter, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": bookings})
}

func bookingHistory(c *gin.Context) {
	status, ok := statusQuery(c)
	if !ok {
		return
	}

	var clientIDs []uint
	if raw := c.Query("client_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid client_ids"})
				return
			}
			clientIDs = append(clientIDs, uint(id))
		}
	}

	opts := services.HistoryOptions{
		IncludePast:   c.Query("include_past") == "true",
		IncludeVisits: c.Query("include_visits") == "true",
		Status:        status,
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			opts.Limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			opts.Offset = v
		}
	}

	entries, err := bookingService.History(clientIDs, opts, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func getBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	booking, err := bookingService.Get(id, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func decideBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.BookingDecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := bookingService.Decide(id, *req.Approve, req.Reason, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking decided",
		"booking": booking,
	})
}

func cancelBooking(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.BookingCancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := bookingService.Cancel(id, req.Reason, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}

func markBookingVisited(c *gin.Context) {
	markBooking(c, true)
}

func markBookingNoShow(c *gin.Context) {
	markBooking(c, false)
}

func markBooking(c *gin.Context, visited bool) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.BookingMarkRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		booking *models.Booking
		err     error
	)
	if visited {
		booking, err = bookingService.MarkVisited(id, req.Note, callerFromContext(c))
	} else {
		booking, err = bookingService.MarkNoShow(id, req.Note, callerFromContext(c))
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func getBookingByToken(c *gin.Context) {
	booking, err := bookingService.GetByToken(c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": booking})
}

func rescheduleByToken(c *gin.Context) {
	var req models.BookingRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	booking, err := bookingService.RescheduleByToken(c.Param("token"), req.SlotID, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking rescheduled",
		"booking": booking,
		"token":   booking.RescheduleToken,
	})
}

func cancelByToken(c *gin.Context) {
	booking, err := bookingService.CancelByToken(c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Booking cancelled",
		"booking": booking,
	})
}
