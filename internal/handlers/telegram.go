package handlers

import (
	"encoding/json"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gofiber/fiber/v2"

	"github.com/pokeloco/pokebot-backend/internal/services"
)

// TelegramHandler handles the operator-console webhook: slash commands and
// inline-button callback queries.
type TelegramHandler struct {
	operator *services.OperatorService
	telegram services.TelegramNotifier
}

// NewTelegramHandler creates a new Telegram handler
func NewTelegramHandler(operator *services.OperatorService, telegram services.TelegramNotifier) *TelegramHandler {
	return &TelegramHandler{
		operator: operator,
		telegram: telegram,
	}
}

// HandleWebhook processes one Telegram update. Always acknowledges with 200:
// surfacing errors to Telegram only causes redeliveries of updates we
// already reacted to.
func (h *TelegramHandler) HandleWebhook(c *fiber.Ctx) error {
	var update tgbotapi.Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		log.Printf("⚠️  Unrecognized Telegram update: %v", err)
		return c.SendStatus(fiber.StatusOK)
	}

	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		messageID := 0
		if cq.Message != nil {
			messageID = cq.Message.MessageID
		}
		log.Printf("🔘 Operator callback: %s", cq.Data)
		h.operator.HandleCallback(cq.ID, messageID, cq.Data)

	case update.Message != nil && strings.HasPrefix(update.Message.Text, "/"):
		log.Printf("⌨️  Operator command: %s", update.Message.Text)
		if reply := h.operator.HandleCommand(update.Message.Text); reply != "" {
			h.telegram.SendMessage(reply, nil)
		}
	}

	return c.SendStatus(fiber.StatusOK)
}
