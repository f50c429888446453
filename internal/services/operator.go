package services

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

// defaultPauseMinutes is the human-handoff window when /pausar gives no time.
const defaultPauseMinutes = 30

// OperatorService mirrors orders into the Telegram operator chat and maps
// button presses back to order-status transitions and customer notifications.
type OperatorService struct {
	store    storage.Store
	telegram TelegramNotifier
	whatsapp WhatsAppSender
}

// NewOperatorService wires the console bridge.
func NewOperatorService(store storage.Store, telegram TelegramNotifier, whatsapp WhatsAppSender) *OperatorService {
	return &OperatorService{
		store:    store,
		telegram: telegram,
		whatsapp: whatsapp,
	}
}

// NotifyNewOrder posts the operator card with action buttons for the order's
// current status.
func (o *OperatorService) NotifyNewOrder(order *models.Order) {
	if _, result := o.telegram.SendMessage(orderCard(order), keyboardForStatus(order)); !result.Success {
		log.Printf("❌ Failed to notify operators about order %s: %s", order.ID, result.Error)
	}
}

// HandleCallback processes an operator button press. The payload format is
// "order:<newStatus>:<phone>". The callback is always answered so the
// operator's client never shows a stuck loading indicator.
func (o *OperatorService) HandleCallback(callbackID string, messageID int, data string) {
	answer := func(text string) {
		o.telegram.AnswerCallback(callbackID, text)
	}

	parts := strings.Split(data, ":")
	if len(parts) != 3 || parts[0] != "order" {
		answer("Acción no reconocida")
		return
	}
	newStatus, phone := parts[1], parts[2]

	if !models.ValidOrderStatus(newStatus) {
		answer("Estado no válido")
		return
	}

	order, err := o.store.GetLatestOrderByPhone(phone)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			answer("Pedido no encontrado")
		} else {
			log.Printf("❌ Callback order lookup failed: %v", err)
			answer("Error consultando el pedido")
		}
		return
	}

	if err := o.store.UpdateOrderStatus(order.ID, newStatus); err != nil {
		log.Printf("❌ Failed to update order %s to %s: %v", order.ID, newStatus, err)
		answer("No se pudo actualizar el pedido")
		return
	}
	order.Status = newStatus

	// Rewrite the card in place with the buttons for the new status.
	if result := o.telegram.EditMessage(messageID, orderCard(order), keyboardForStatus(order)); !result.Success {
		log.Printf("❌ Failed to edit operator card for %s: %s", order.ID, result.Error)
	}

	if template := customerTemplate(order); template != "" {
		if result := o.whatsapp.SendText(order.CustomerPhone, template); !result.Success {
			log.Printf("❌ Failed to notify customer %s: %s", order.CustomerPhone, result.Error)
		}
	}

	answer("Pedido → " + StatusLabel(newStatus))
}

// HandleCommand processes an operator slash command and returns the reply.
func (o *OperatorService) HandleCommand(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "/pedidos":
		return o.activeOrdersReport()
	case "/ventas":
		return o.salesReport()
	case "/pausar":
		if len(fields) < 2 {
			return "Uso: /pausar <teléfono> [minutos]"
		}
		minutes := defaultPauseMinutes
		if len(fields) >= 3 {
			if m, err := strconv.Atoi(fields[2]); err == nil && m > 0 {
				minutes = m
			}
		}
		return o.pauseCustomer(fields[1], minutes)
	case "/reanudar":
		if len(fields) < 2 {
			return "Uso: /reanudar <teléfono>"
		}
		return o.resumeCustomer(fields[1])
	case "/ayuda", "/start", "/help":
		return "Comandos:\n" +
			"/pedidos — pedidos activos\n" +
			"/ventas — ventas de hoy\n" +
			"/pausar <teléfono> [min] — pausar el bot para un cliente\n" +
			"/reanudar <teléfono> — reactivar el bot\n" +
			"/ayuda — esta lista"
	}
	return "Comando no reconocido. Escribe /ayuda."
}

func (o *OperatorService) activeOrdersReport() string {
	orders, err := o.store.GetActiveOrders()
	if err != nil {
		log.Printf("❌ Failed to list active orders: %v", err)
		return "Error consultando pedidos"
	}
	if len(orders) == 0 {
		return "No hay pedidos activos 🎉"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 Pedidos activos (%d):\n\n", len(orders))
	for _, order := range orders {
		fmt.Fprintf(&sb, "#%s — %s — $%.0f — %s\n",
			shortID(order.ID), customerLabel(order), order.Total, StatusLabel(order.Status))
	}
	return sb.String()
}

func (o *OperatorService) salesReport() string {
	orders, err := o.store.GetOrdersCreatedToday()
	if err != nil {
		log.Printf("❌ Failed to build sales report: %v", err)
		return "Error consultando ventas"
	}

	total := 0.0
	count := 0
	for _, order := range orders {
		if order.Status == models.OrderStatusCancelled {
			continue
		}
		total += order.Total
		count++
	}
	return fmt.Sprintf("💰 Ventas de hoy: %d pedidos, $%.0f", count, total)
}

func (o *OperatorService) pauseCustomer(phone string, minutes int) string {
	phone = models.NormalizePhone(phone)

	session, err := o.store.GetSession(phone)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return "Error consultando la sesión"
		}
		session = models.NewSession(phone)
	}

	until := time.Now().Add(time.Duration(minutes) * time.Minute)
	session.Mode = models.ModePaused
	session.PausedUntil = &until

	if err := o.store.SaveSession(session); err != nil {
		return "Error guardando la sesión"
	}
	return fmt.Sprintf("⏸️ Bot pausado para %s por %d minutos", phone, minutes)
}

func (o *OperatorService) resumeCustomer(phone string) string {
	phone = models.NormalizePhone(phone)

	session, err := o.store.GetSession(phone)
	if err != nil {
		return "No encontré sesión para ese teléfono"
	}

	session.Mode = models.ModeNormal
	session.PausedUntil = nil

	if err := o.store.SaveSession(session); err != nil {
		return "Error guardando la sesión"
	}
	return fmt.Sprintf("▶️ Bot reactivado para %s", phone)
}

// orderCard renders the fixed-layout operator card for an order.
func orderCard(order *models.Order) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🍣 Pedido #%s\n\n", shortID(order.ID))
	fmt.Fprintf(&sb, "👤 %s\n", customerLabel(order))

	for _, item := range order.Items {
		fmt.Fprintf(&sb, "• %dx %s — $%.0f\n", item.Quantity, item.Name, item.Price*float64(item.Quantity))
		if item.Notes != "" {
			fmt.Fprintf(&sb, "  %s\n", strings.ReplaceAll(item.Notes, "\n", "\n  "))
		}
	}

	if order.DeliveryMethod == models.DeliveryMethodDelivery {
		fmt.Fprintf(&sb, "\n🛵 Domicilio: %s\n", order.Address)
	} else {
		fmt.Fprintf(&sb, "\n🏪 Recoger: %s\n", order.PickupTime)
	}
	fmt.Fprintf(&sb, "💰 Total: $%.0f\n", order.Total)
	fmt.Fprintf(&sb, "📊 Estado: %s", StatusLabel(order.Status))
	return sb.String()
}

// keyboardForStatus builds the inline keyboard for the order's current
// status. Terminal statuses get no buttons.
func keyboardForStatus(order *models.Order) [][]Button {
	action := func(status, title string) Button {
		return Button{
			ID:    fmt.Sprintf("order:%s:%s", status, order.CustomerPhone),
			Title: title,
		}
	}

	switch order.Status {
	case models.OrderStatusPending:
		return [][]Button{{
			action(models.OrderStatusConfirmed, "✅ Aceptar"),
			action(models.OrderStatusCancelled, "❌ Rechazar"),
		}}
	case models.OrderStatusAwaitingPayment:
		return [][]Button{{
			action(models.OrderStatusConfirmed, "💳 Pago recibido"),
			action(models.OrderStatusCancelled, "❌ Cancelar"),
		}}
	case models.OrderStatusConfirmed:
		return [][]Button{{
			action(models.OrderStatusPreparing, "👨‍🍳 En preparación"),
			action(models.OrderStatusCancelled, "❌ Cancelar"),
		}}
	case models.OrderStatusPreparing:
		return [][]Button{
			{
				action(models.OrderStatusOnTheWay, "🛵 En camino"),
				action(models.OrderStatusCompleted, "🏪 Listo para recoger"),
			},
			{action(models.OrderStatusCancelled, "❌ Cancelar")},
		}
	case models.OrderStatusOnTheWay:
		return [][]Button{{
			action(models.OrderStatusCompleted, "🎉 Entregado"),
			action(models.OrderStatusCancelled, "❌ Cancelar"),
		}}
	}
	return nil
}

// customerTemplate is the customer-facing message for a status transition.
// Statuses without a template send nothing.
func customerTemplate(order *models.Order) string {
	switch order.Status {
	case models.OrderStatusConfirmed:
		return fmt.Sprintf("✅ ¡Tu pedido #%s fue confirmado! Ya lo estamos preparando.", shortID(order.ID))
	case models.OrderStatusPreparing:
		return fmt.Sprintf("👨‍🍳 Tu pedido #%s está en preparación.", shortID(order.ID))
	case models.OrderStatusOnTheWay:
		return fmt.Sprintf("🛵 ¡Tu pedido #%s va en camino!", shortID(order.ID))
	case models.OrderStatusCompleted:
		if order.DeliveryMethod == models.DeliveryMethodPickup {
			return fmt.Sprintf("🏪 Tu pedido #%s está listo para recoger. ¡Te esperamos!", shortID(order.ID))
		}
		return fmt.Sprintf("🎉 Tu pedido #%s fue entregado. ¡Buen provecho!", shortID(order.ID))
	case models.OrderStatusCancelled:
		return fmt.Sprintf("❌ Tu pedido #%s fue cancelado. Escríbenos si tienes dudas.", shortID(order.ID))
	}
	return ""
}

func customerLabel(order *models.Order) string {
	if order.CustomerName != "" {
		return fmt.Sprintf("%s (%s)", order.CustomerName, order.CustomerPhone)
	}
	return order.CustomerPhone
}
