package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/pokeloco/pokebot-backend/internal/config"
	"github.com/pokeloco/pokebot-backend/internal/handlers"
	"github.com/pokeloco/pokebot-backend/internal/middleware"
	"github.com/pokeloco/pokebot-backend/internal/services"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

// SetupRoutes configures all API routes
func SetupRoutes(
	app *fiber.App,
	cfg *config.Config,
	store storage.Store,
	conversation *services.ConversationService,
	operator *services.OperatorService,
	telegram services.TelegramNotifier,
) {
	whatsappHandler := handlers.NewWhatsAppHandler(store, conversation, cfg.WhatsAppVerifyToken)
	telegramHandler := handlers.NewTelegramHandler(operator, telegram)
	orderHandler := handlers.NewOrderHandler(store, operator)

	// Root endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "Poke Loco Bot Backend",
			"version": "1.0.0",
			"endpoints": fiber.Map{
				"health":           "/health",
				"api":              "/api",
				"whatsapp_webhook": "/webhook/whatsapp",
				"telegram_webhook": "/webhook/telegram",
			},
		})
	})

	app.Get("/health", handlers.HealthCheck(cfg.UseMemoryStore))

	// ========== WEBHOOK ROUTES ==========
	webhooks := app.Group("/webhook")

	// Subscription handshake has no body to sign.
	webhooks.Get("/whatsapp", whatsappHandler.HandleVerify)

	// WhatsApp POSTs are signature-checked against the raw body. The check
	// can only be bypassed explicitly, for local tunnels.
	if os.Getenv("DISABLE_WEBHOOK_VALIDATION") == "true" && cfg.Environment == "development" {
		log.Println("⚠️  WhatsApp webhook validation DISABLED for development")
		webhooks.Post("/whatsapp", whatsappHandler.HandleWebhook)
	} else {
		webhooks.Post("/whatsapp",
			middleware.ValidateWebhookSignature(cfg.WhatsAppAppSecret),
			whatsappHandler.HandleWebhook)
	}

	webhooks.Post("/telegram", telegramHandler.HandleWebhook)

	// ========== API ROUTES (web checkout) ==========
	api := app.Group("/api")

	orders := api.Group("/orders")
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListActiveOrders)
	orders.Get("/:id", orderHandler.GetOrder)
}
