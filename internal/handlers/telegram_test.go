package handlers

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/services"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

type stubTelegram struct {
	sent      []string
	edited    []int
	callbacks []string
}

func (s *stubTelegram) SendMessage(text string, keyboard [][]services.Button) (int, services.SendResult) {
	s.sent = append(s.sent, text)
	return len(s.sent), services.SendResult{Success: true}
}

func (s *stubTelegram) EditMessage(messageID int, text string, keyboard [][]services.Button) services.SendResult {
	s.edited = append(s.edited, messageID)
	return services.SendResult{Success: true}
}

func (s *stubTelegram) AnswerCallback(callbackID, text string) services.SendResult {
	s.callbacks = append(s.callbacks, callbackID)
	return services.SendResult{Success: true}
}

func newTelegramApp() (*fiber.App, *storage.MemoryStore, *stubTelegram, *stubSender) {
	store := storage.NewMemoryStore()
	telegram := &stubTelegram{}
	whatsapp := &stubSender{}
	operator := services.NewOperatorService(store, telegram, whatsapp)
	handler := NewTelegramHandler(operator, telegram)

	app := fiber.New()
	app.Post("/webhook/telegram", handler.HandleWebhook)
	return app, store, telegram, whatsapp
}

func TestCallbackQueryUpdatesOrder(t *testing.T) {
	app, store, telegram, whatsapp := newTelegramApp()

	order, err := store.CreateOrder(&models.Order{
		CustomerPhone:  testPhone,
		Items:          []models.OrderItem{{Name: "Poke Vegetariano", Price: 149, Quantity: 1}},
		DeliveryMethod: models.DeliveryMethodPickup,
		Source:         models.OrderSourceBot,
	})
	assert.NoError(t, err)

	update := fmt.Sprintf(`{
		"update_id": 1,
		"callback_query": {
			"id": "cb-1",
			"data": "order:confirmed:%s",
			"message": {"message_id": 42, "chat": {"id": 99}, "date": 0}
		}
	}`, testPhone)
	status, _ := postJSON(app, "/webhook/telegram", update)
	assert.Equal(t, 200, status)

	updated, err := store.GetOrder(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	assert.Equal(t, []int{42}, telegram.edited)
	assert.Equal(t, []string{"cb-1"}, telegram.callbacks)
	assert.Len(t, whatsapp.sent, 1)
}

func TestCommandUpdateGetsReply(t *testing.T) {
	app, _, telegram, _ := newTelegramApp()

	status, _ := postJSON(app, "/webhook/telegram", `{
		"update_id": 2,
		"message": {"message_id": 7, "text": "/pedidos", "chat": {"id": 99}, "date": 0}
	}`)
	assert.Equal(t, 200, status)
	assert.Len(t, telegram.sent, 1)
	assert.Contains(t, telegram.sent[0], "No hay pedidos activos")
}

func TestNonCommandMessageIsIgnored(t *testing.T) {
	app, _, telegram, _ := newTelegramApp()

	status, _ := postJSON(app, "/webhook/telegram", `{
		"update_id": 3,
		"message": {"message_id": 8, "text": "hola equipo", "chat": {"id": 99}, "date": 0}
	}`)
	assert.Equal(t, 200, status)
	assert.Empty(t, telegram.sent)
}

func TestGarbageUpdateIsAcked(t *testing.T) {
	app, _, telegram, _ := newTelegramApp()

	req := httptest.NewRequest("POST", "/webhook/telegram", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Empty(t, telegram.sent)
}
