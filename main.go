package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"foodbank-server/config"
	"foodbank-server/database"
	"foodbank-server/jobs"
	"foodbank-server/middleware"
	"foodbank-server/models"
	"foodbank-server/routes"
	"foodbank-server/services"
	"foodbank-server/utils"
	ws "foodbank-server/websocket"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Load configuration
	config.Load()

	// Anchor all calendar math in the configured pantry timezone
	if err := utils.SetPantryZone(config.AppConfig.Pantry.Timezone); err != nil {
		log.Fatal("Invalid pantry timezone:", err)
	}

	// Initialize database
	if err := database.Initialize(); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	// Set Gin mode
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Create router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Disable automatic redirects for trailing slashes
	router.RedirectTrailingSlash = false
	router.RedirectFixedPath = false

	// Security headers and rate limiting
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.RateLimitMiddleware())

	// CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Food bank server is running",
			"time":    time.Now().UTC(),
		})
	})

	// Staff ops feed: booking lifecycle events over WebSocket
	opsHub := ws.NewHub()
	go opsHub.Run()
	router.GET("/api/v1/ws/ops",
		middleware.AuthMiddleware(),
		middleware.RequireRoles(models.RoleStaff),
		func(c *gin.Context) {
			ws.ServeWebSocket(opsHub, c.Writer, c.Request, c.GetUint("user_id"))
		})

	// Wire handlers to the database and the ops feed
	routes.InitServices(database.DB, opsHub)

	// API routes
	api := router.Group("/api/v1")
	{
		// Token endpoints are public: the reschedule token itself is
		// the credential.
		tokenRoutes := api.Group("/bookings/token")
		routes.RegisterBookingTokenRoutes(tokenRoutes)

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			bookingRoutes := protected.Group("/bookings")
			routes.RegisterBookingRoutes(bookingRoutes)

			visitRoutes := protected.Group("/visits")
			visitRoutes.Use(middleware.RequireRoles(models.RoleStaff, models.RoleVolunteer))
			routes.RegisterVisitRoutes(visitRoutes)

			slotRoutes := protected.Group("/slots")
			routes.RegisterSlotRoutes(slotRoutes)

			slotAdminRoutes := protected.Group("/slots")
			slotAdminRoutes.Use(middleware.RequireRoles(models.RoleStaff))
			routes.RegisterSlotAdminRoutes(slotAdminRoutes)
		}
	}

	// Start background reminder job
	reminderJob := jobs.NewReminderJob(database.DB, services.NewNotifier(database.DB, opsHub),
		config.AppConfig.Pantry.ReminderHour)
	reminderJob.Start()
	defer reminderJob.Stop()

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := router.Run("0.0.0.0:" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
