package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"foodbank-server/models"
	"foodbank-server/services"
)

// RegisterVisitRoutes registers the visit recorder endpoints.
func RegisterVisitRoutes(router *gin.RouterGroup) {
	router.POST("", recordVisit)
	router.GET("", listVisits)
}

// recordVisit logs an actual pantry visit. The booking side effects
// (resolving an outstanding reservation to visited/no_show) happen in
// the same transaction inside the service.
func recordVisit(c *gin.Context) {
	var req models.VisitCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	visit, err := visitService.Record(services.VisitParams{
		ClientID:  req.ClientID,
		Anonymous: req.Anonymous,
		Date:      req.Date,
		Note:      req.Note,
	}, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Visit recorded",
		"visit":   visit,
	})
}

func listVisits(c *gin.Context) {
	var date *string
	if raw := c.Query("date"); raw != "" {
		date = &raw
	}
	visits, err := visitService.List(date, callerFromContext(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"visits": visits})
}
