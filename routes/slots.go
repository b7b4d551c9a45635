package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"foodbank-server/models"
)

// RegisterSlotRoutes registers slot read endpoints for all
// authenticated callers.
func RegisterSlotRoutes(router *gin.RouterGroup) {
	router.GET("", listSlots)
	router.GET("/:id", getSlot)
}

// RegisterSlotAdminRoutes registers the capacity-administration
// endpoints (staff only, enforced by the route group middleware).
func RegisterSlotAdminRoutes(router *gin.RouterGroup) {
	router.POST("", createSlot)
	router.PUT("/:id", updateSlot)
	router.DELETE("/:id", deleteSlot)
}

func listSlots(c *gin.Context) {
	var slots []models.Slot
	if err := db.Order("start_time").Find(&slots).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch slots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots})
}

func getSlot(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var slot models.Slot
	if err := db.First(&slot, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch slot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot": slot})
}

func createSlot(c *gin.Context) {
	var req models.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	slot := models.Slot{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		MaxCapacity: req.MaxCapacity,
	}
	if err := db.Create(&slot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create slot"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Slot created",
		"slot":    slot,
	})
}

// updateSlot changes a slot's window or capacity. Shrinking capacity
// never touches existing approvals; the new limit only gates future
// admissions.
func updateSlot(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req models.SlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var slot models.Slot
	if err := db.First(&slot, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Slot not found"})
		return
	}

	slot.StartTime = req.StartTime
	slot.EndTime = req.EndTime
	slot.MaxCapacity = req.MaxCapacity
	if err := db.Save(&slot).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update slot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Slot updated",
		"slot":    slot,
	})
}

func deleteSlot(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	// Refuse while upcoming bookings still point at the slot.
	var upcoming int64
	if err := db.Model(&models.Booking{}).
		Where("slot_id = ? AND status IN ?", id,
			[]models.BookingStatus{models.BookingStatusSubmitted, models.BookingStatusApproved}).
		Count(&upcoming).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check slot usage"})
		return
	}
	if upcoming > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Slot still has upcoming bookings"})
		return
	}

	if err := db.Delete(&models.Slot{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete slot"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Slot deleted"})
}
