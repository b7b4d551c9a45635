package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"foodbank-server/models"
	"foodbank-server/services"
	ws "foodbank-server/websocket"
)

var (
	db             *gorm.DB
	bookingService *services.BookingService
	visitService   *services.VisitService
)

// InitServices wires the handler package to its dependencies. Called
// once from main (and from handler tests with an in-memory database).
func InitServices(gdb *gorm.DB, hub *ws.Hub) {
	db = gdb
	notifier := services.NewNotifier(gdb, hub)
	bookingService = services.NewBookingService(gdb, notifier)
	visitService = services.NewVisitService(gdb)
}

// callerFromContext builds the engine's caller identity from what the
// auth middleware resolved.
func callerFromContext(c *gin.Context) services.Caller {
	caller := services.Caller{
		UserID: c.GetUint("user_id"),
		Role:   c.GetString("role"),
	}
	if clientID, ok := c.Get("client_id"); ok {
		if id, ok := clientID.(uint); ok {
			caller.ClientID = &id
		}
	}
	return caller
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Retryable transaction errors get a 503 and an explicit flag so
// clients (and proxies) know re-issuing the request is safe.
func respondError(c *gin.Context, err error) {
	var (
		validationErr *services.ValidationError
		notFoundErr   *services.NotFoundError
		conflictErr   *services.ConflictError
		forbiddenErr  *services.ForbiddenError
		retryableErr  *services.RetryableTransactionError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Msg})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundErr.Msg})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Msg})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Msg})
	case errors.As(err, &retryableErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     retryableErr.Msg,
			"retryable": true,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// statusQuery parses an optional ?status= filter.
func statusQuery(c *gin.Context) (*models.BookingStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	status := models.BookingStatus(raw)
	switch status {
	case models.BookingStatusSubmitted, models.BookingStatusApproved,
		models.BookingStatusRejected, models.BookingStatusCancelled,
		models.BookingStatusVisited, models.BookingStatusNoShow:
		return &status, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
	return nil, false
}
