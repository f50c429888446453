package handlers

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/services"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

// OrderHandler exposes the web-checkout order API. Orders created here flow
// through the same operator console as bot orders.
type OrderHandler struct {
	store    storage.Store
	notifier services.OrderNotifier
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(store storage.Store, notifier services.OrderNotifier) *OrderHandler {
	return &OrderHandler{
		store:    store,
		notifier: notifier,
	}
}

// CreateOrderRequest is the web-checkout payload.
type CreateOrderRequest struct {
	CustomerName   string             `json:"customer_name"`
	Phone          string             `json:"phone"`
	Items          []models.OrderItem `json:"items"`
	DeliveryMethod string             `json:"delivery_method"`
	Address        string             `json:"address"`
	PickupTime     string             `json:"pickup_time"`
	PaymentMethod  string             `json:"payment_method"`
}

// CreateOrder persists a web-checkout order. Card payments start in
// awaiting_payment; everything else starts pending.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid order payload",
		})
	}

	if models.NormalizePhone(req.Phone) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "phone is required",
		})
	}
	if len(req.Items) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "order needs at least one item",
		})
	}
	if req.DeliveryMethod != models.DeliveryMethodDelivery && req.DeliveryMethod != models.DeliveryMethodPickup {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "delivery_method must be delivery or pickup",
		})
	}
	if req.DeliveryMethod == models.DeliveryMethodDelivery && req.Address == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "address is required for delivery",
		})
	}

	status := models.OrderStatusPending
	if req.PaymentMethod == "card" {
		status = models.OrderStatusAwaitingPayment
	}

	order := &models.Order{
		CustomerPhone:  req.Phone,
		CustomerName:   req.CustomerName,
		Items:          req.Items,
		DeliveryMethod: req.DeliveryMethod,
		Address:        req.Address,
		PickupTime:     req.PickupTime,
		Status:         status,
		Source:         models.OrderSourceWeb,
		PaymentMethod:  req.PaymentMethod,
	}

	created, err := h.store.CreateOrder(order)
	if err != nil {
		log.Printf("❌ Failed to create web order: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create order",
		})
	}

	if h.notifier != nil {
		h.notifier.NotifyNewOrder(created)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

// GetOrder returns one order by id.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.store.GetOrder(c.Params("id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Order not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch order",
		})
	}
	return c.JSON(order)
}

// ListActiveOrders returns all orders not yet completed or cancelled.
func (h *OrderHandler) ListActiveOrders(c *fiber.Ctx) error {
	orders, err := h.store.GetActiveOrders()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list orders",
		})
	}
	return c.JSON(fiber.Map{
		"count":  len(orders),
		"orders": orders,
	})
}
