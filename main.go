package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pokeloco/pokebot-backend/database"
	"github.com/pokeloco/pokebot-backend/internal/config"
	"github.com/pokeloco/pokebot-backend/internal/routes"
	"github.com/pokeloco/pokebot-backend/internal/services"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize storage
	var store storage.Store

	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to PostgreSQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		dbStore, err := storage.NewDatabaseStore(database.DB)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")
		store = dbStore
	}
	storage.SetStore(store)

	// Messaging adapters (mock mode when credentials are absent)
	whatsappService := services.NewWhatsAppService(cfg)
	telegramService := services.NewTelegramService(cfg)

	// Intent interpreter (optional, degrades to deterministic fallbacks)
	llmClient := services.NewOpenAIClient(cfg)
	var intentService *services.IntentService
	if llmClient != nil {
		intentService = services.NewIntentService(llmClient)
		log.Println("✅ LLM intent interpreter enabled")
	} else {
		intentService = services.NewIntentService(nil)
		log.Println("⚠️  No LLM key configured - using keyword matching only")
	}

	operatorService := services.NewOperatorService(store, telegramService, whatsappService)
	conversationService := services.NewConversationService(
		store, whatsappService, whatsappService, intentService, operatorService)

	log.Println("✅ All services initialized")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: "Poke Loco Bot Backend v1.0.0",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	routes.SetupRoutes(app, cfg, store, conversationService, operatorService, telegramService)

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("\n🛑 Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	log.Println("========================================")
	log.Printf("🚀 Poke Loco backend starting on port %s", cfg.Port)
	log.Printf("📊 Storage: %s", storageType(cfg))
	log.Printf("📱 WhatsApp: %s", configuredLabel(cfg.WhatsAppConfigured()))
	log.Printf("💬 Telegram console: %s", configuredLabel(cfg.TelegramConfigured()))
	log.Printf("🤖 Intent interpreter: %s", configuredLabel(llmClient != nil))
	log.Println("========================================")

	log.Fatal(app.Listen(":" + cfg.Port))
}

func storageType(cfg *config.Config) string {
	if cfg.UseMemoryStore {
		return "In-Memory (Testing)"
	}
	return "PostgreSQL Database"
}

func configuredLabel(ok bool) string {
	if ok {
		return "Configured"
	}
	return "Not configured (mock mode)"
}
