package handlers

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

type countingNotifier struct {
	notified int
}

func (n *countingNotifier) NotifyNewOrder(order *models.Order) { n.notified++ }

func newOrdersApp() (*fiber.App, *storage.MemoryStore, *countingNotifier) {
	store := storage.NewMemoryStore()
	notifier := &countingNotifier{}
	handler := NewOrderHandler(store, notifier)

	app := fiber.New()
	api := app.Group("/api/orders")
	api.Post("/", handler.CreateOrder)
	api.Get("/", handler.ListActiveOrders)
	api.Get("/:id", handler.GetOrder)
	return app, store, notifier
}

func postJSON(app *fiber.App, path, body string) (int, []byte) {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		return -1, nil
	}
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func TestCreateWebOrder(t *testing.T) {
	app, store, notifier := newOrdersApp()

	status, body := postJSON(app, "/api/orders/", `{
		"customer_name": "Ana",
		"phone": "+52 1 999 123 4567",
		"items": [{"name": "Poke Clásico de Atún", "price": 169, "quantity": 2}],
		"delivery_method": "delivery",
		"address": "Av. Reforma 123",
		"payment_method": "cash"
	}`)
	assert.Equal(t, 201, status)

	var order models.Order
	assert.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.OrderSourceWeb, order.Source)
	assert.Equal(t, testPhone, order.CustomerPhone)
	assert.Equal(t, 338.0, order.Total)
	assert.Equal(t, 1, notifier.notified)

	stored, err := store.GetOrder(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, order.Total, stored.Total)
}

func TestCardPaymentStartsAwaitingPayment(t *testing.T) {
	app, _, _ := newOrdersApp()

	status, body := postJSON(app, "/api/orders/", `{
		"phone": "5219991234567",
		"items": [{"name": "Poke Vegetariano", "price": 149, "quantity": 1}],
		"delivery_method": "pickup",
		"pickup_time": "2:30 pm",
		"payment_method": "card"
	}`)
	assert.Equal(t, 201, status)

	var order models.Order
	assert.NoError(t, json.Unmarshal(body, &order))
	assert.Equal(t, models.OrderStatusAwaitingPayment, order.Status)
}

func TestCreateOrderValidation(t *testing.T) {
	app, _, notifier := newOrdersApp()

	cases := []string{
		`{"items": [{"name": "x", "price": 1}], "delivery_method": "pickup"}`,
		`{"phone": "5219991234567", "items": [], "delivery_method": "pickup"}`,
		`{"phone": "5219991234567", "items": [{"name": "x", "price": 1}], "delivery_method": "drone"}`,
		`{"phone": "5219991234567", "items": [{"name": "x", "price": 1}], "delivery_method": "delivery"}`,
	}
	for _, body := range cases {
		status, _ := postJSON(app, "/api/orders/", body)
		assert.Equal(t, 400, status, body)
	}
	assert.Zero(t, notifier.notified)
}

func TestGetOrderNotFound(t *testing.T) {
	app, _, _ := newOrdersApp()

	resp, err := app.Test(httptest.NewRequest("GET", "/api/orders/nope", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
}

func TestListActiveOrders(t *testing.T) {
	app, store, _ := newOrdersApp()

	order, err := store.CreateOrder(&models.Order{
		CustomerPhone:  testPhone,
		Items:          []models.OrderItem{{Name: "Poke Vegetariano", Price: 149, Quantity: 1}},
		DeliveryMethod: models.DeliveryMethodPickup,
		Source:         models.OrderSourceWeb,
	})
	assert.NoError(t, err)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/orders/", nil), -1)
	assert.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var listing struct {
		Count  int            `json:"count"`
		Orders []models.Order `json:"orders"`
	}
	data, _ := io.ReadAll(resp.Body)
	assert.NoError(t, json.Unmarshal(data, &listing))
	assert.Equal(t, 1, listing.Count)
	assert.Equal(t, order.ID, listing.Orders[0].ID)
}
