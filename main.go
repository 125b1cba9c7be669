package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"

	"phoenixd-dashboard-server/handlers"
	"phoenixd-dashboard-server/middleware"
	"phoenixd-dashboard-server/services"

	_ "phoenixd-dashboard-server/docs"
)

// @title phoenixd Dashboard API
// @version 1.0
// @description Operations dashboard server for a self-hosted phoenixd Lightning node
// @host localhost:8080
// @BasePath /api
func main() {
	// Config
	serverPort := getEnv("SERVER_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "localhost")
	redisPort, _ := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	eventsChannel := getEnv("EVENTS_CHANNEL", "events")

	// PostgreSQL Config
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	dbUser := getEnv("DB_USER", "phoenixd")
	dbPassword := getEnv("DB_PASSWORD", "phoenixd")
	dbName := getEnv("DB_NAME", "phoenixd_dashboard")

	// phoenixd Config
	phoenixURL := getEnv("PHOENIX_URL", "http://localhost:9740")
	phoenixPassword := getEnv("PHOENIX_API_PASSWORD", "")

	// Scheduler Config
	intervalSec, _ := strconv.Atoi(getEnv("SCHEDULER_INTERVAL_SECONDS", "60"))
	notifyOnFailure := getEnv("NOTIFY_ON_FAILURE", "false") == "true"

	// Storage Config
	storageType := getEnv("STORAGE_TYPE", "local")
	storagePath := getEnv("STORAGE_PATH", "/data/exports")

	// Initialize services
	dbService, err := services.NewDBService(dbHost, dbPort, dbUser, dbPassword, dbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbService.Close()

	// Initialize database schema
	if err := dbService.InitSchema(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database schema: %v", err)
	}
	log.Println("Database schema initialized")

	// Initialize storage service
	storageService, err := services.NewStorageService(storageType, storagePath)
	if err != nil {
		log.Fatalf("Failed to initialize storage service: %v", err)
	}
	log.Printf("Storage service initialized: %s (%s)", storageType, storagePath)

	// Initialize Redis event publisher
	redisService := services.NewRedisService(redisHost, redisPort, eventsChannel)

	// Initialize phoenixd gateway and LNURL fallback
	phoenixService := services.NewPhoenixService(phoenixURL, phoenixPassword)
	lnurlService := services.NewLNURLService()

	// Initialize recurring payment service and scheduler
	recurringService := services.NewRecurringService(dbService, phoenixService, lnurlService, redisService, storageService)
	recurringService.NotifyOnFailure = notifyOnFailure

	runner := services.NewRecurringRunner(dbService, recurringService, time.Duration(intervalSec)*time.Second)
	runner.Start()

	// Initialize handlers
	recurringHandler := handlers.NewRecurringHandler(recurringService)
	contactHandler := handlers.NewContactHandler(dbService)
	nodeHandler := handlers.NewNodeHandler(dbService)

	// Fiber App
	app := fiber.New(fiber.Config{
		AppName: "phoenixd-dashboard",
	})

	// Middleware
	app.Use(logger.New())
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(middleware.XRayMiddleware())

	// Swagger
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoints
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	// API routes
	api := app.Group("/api")

	// Recurring payment routes
	api.Post("/recurring", recurringHandler.CreateRecurringPayment)
	api.Get("/recurring", recurringHandler.ListRecurringPayments)
	api.Get("/recurring/:id", recurringHandler.GetRecurringPayment)
	api.Put("/recurring/:id", recurringHandler.UpdateRecurringPayment)
	api.Delete("/recurring/:id", recurringHandler.CancelRecurringPayment)
	api.Post("/recurring/:id/pause", recurringHandler.PauseRecurringPayment)
	api.Post("/recurring/:id/resume", recurringHandler.ResumeRecurringPayment)
	api.Post("/recurring/:id/execute", recurringHandler.ExecuteRecurringPayment)
	api.Get("/recurring/:id/executions", recurringHandler.ListExecutions)
	api.Post("/recurring/:id/executions/export", recurringHandler.ExportExecutions)

	// Contact routes
	api.Post("/contacts", contactHandler.CreateContact)
	api.Get("/contacts", contactHandler.ListContacts)
	api.Get("/contacts/:id", contactHandler.GetContact)
	api.Delete("/contacts/:id", contactHandler.DeleteContact)

	// Node connection routes
	api.Post("/nodes", nodeHandler.CreateNodeConnection)
	api.Get("/nodes", nodeHandler.ListNodeConnections)
	api.Post("/nodes/:id/activate", nodeHandler.ActivateNodeConnection)
	api.Delete("/nodes/:id", nodeHandler.DeleteNodeConnection)

	// Graceful shutdown: stop the poller, let in-flight work finish
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down")
		runner.Stop()
		_ = app.Shutdown()
	}()

	log.Printf("phoenixd Dashboard Server starting on port %s", serverPort)
	log.Printf("Database: %s:%d/%s", dbHost, dbPort, dbName)
	log.Printf("Redis: %s:%d", redisHost, redisPort)
	log.Printf("phoenixd: %s", phoenixURL)
	if err := app.Listen(":" + serverPort); err != nil {
		log.Fatal(err)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
