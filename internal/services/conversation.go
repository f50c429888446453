package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

// OrderNotifier mirrors new orders into the operator console.
type OrderNotifier interface {
	NotifyNewOrder(order *models.Order)
}

// InboundMessage is one parsed customer event from the WhatsApp webhook.
type InboundMessage struct {
	MessageID string
	From      string // customer phone, digits only
	Name      string // contact profile name, may be empty
	Text      string // text body or pressed button title
	ButtonID  string // interactive button_reply id, may be empty
	MediaID   string // media attachment id, may be empty
}

// ConversationService advances one session per inbound message: load (or
// lazily create) the session, append the message to history, dispatch on
// (mode, input), persist, and emit replies. Processing is serialized per
// phone so near-simultaneous deliveries cannot lose session updates.
type ConversationService struct {
	store    storage.Store
	whatsapp WhatsAppSender
	media    MediaDownloader
	intent   *IntentService
	notifier OrderNotifier

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewConversationService wires the state machine. notifier may be nil.
func NewConversationService(
	store storage.Store,
	whatsapp WhatsAppSender,
	media MediaDownloader,
	intent *IntentService,
	notifier OrderNotifier,
) *ConversationService {
	return &ConversationService{
		store:    store,
		whatsapp: whatsapp,
		media:    media,
		intent:   intent,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
	}
}

// ProcessMessage is one full state-machine step for an inbound message.
func (c *ConversationService) ProcessMessage(ctx context.Context, msg InboundMessage) error {
	phone := models.NormalizePhone(msg.From)
	if phone == "" {
		return fmt.Errorf("inbound message without a phone")
	}

	unlock := c.lockPhone(phone)
	defer unlock()

	session, err := c.store.GetSession(phone)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		session = models.NewSession(phone)
		log.Printf("👤 New session created for %s", phone)
	}

	if msg.Name != "" && session.Profile.Name == "" {
		session.Profile.Name = msg.Name
	}

	text := strings.TrimSpace(msg.Text)
	if msg.MediaID != "" {
		if media := c.downloadMedia(msg.MediaID); media != nil {
			session.AppendTurn(models.RoleUser, fmt.Sprintf("[adjunto %s]", media.MimeType))
		} else {
			session.AppendTurn(models.RoleUser, "[adjunto no disponible]")
		}
	}
	if text != "" {
		session.AppendTurn(models.RoleUser, text)
	}

	// An expired pause window falls back to NORMAL before dispatch.
	if session.Mode == models.ModePaused && !session.IsPaused() {
		session.Mode = models.ModeNormal
		session.PausedUntil = nil
	}

	switch session.Mode {
	case models.ModePaused:
		// Logged into history above, but the flow does not advance.
		c.reply(session, "🛠️ En este momento un miembro del equipo está atendiendo tu chat. En breve te respondemos.")
	case models.ModeBuilder:
		c.handleBuilder(ctx, session, text, msg.ButtonID)
	case models.ModeCheckout:
		c.handleCheckout(ctx, session, text, msg.ButtonID)
	default:
		c.handleNormal(ctx, session, text, msg.ButtonID)
	}

	return c.store.SaveSession(session)
}

// handleNormal is the idle/browsing mode: greetings, quick menu, builder
// entry, order-status queries.
func (c *ConversationService) handleNormal(ctx context.Context, session *models.Session, text, buttonID string) {
	lower := strings.ToLower(text)

	switch buttonID {
	case "start_builder":
		c.startBuilder(session)
		return
	case "show_menu":
		c.reply(session, menuText())
		return
	case "order_status":
		c.replyOrderStatus(session)
		return
	}

	// Deterministic fast paths first; the LLM only sees what these miss.
	switch {
	case lower == "" && len(session.History) > 0:
		c.reply(session, "Recibí tu mensaje 🙌 ¿Quieres armar un poke o ver el menú?")
		return
	case containsAny(lower, "hola", "buenas", "hello", "hi", "menu", "menú"):
		c.sendGreeting(session)
		return
	case containsAny(lower, "armar", "personalizar", "crear mi"):
		c.startBuilder(session)
		return
	case containsAny(lower, "mi pedido", "mi orden", "estatus", "status", "dónde viene", "donde viene"):
		c.replyOrderStatus(session)
		return
	}

	if product, ok := models.MatchQuickMenu(lower); ok && containsAny(lower, "quiero", "dame", "pedir", "me das") {
		c.startDirectCheckout(session, product)
		return
	}

	switch c.analyzeIntent(ctx, session, text) {
	case IntentStartBuilder:
		c.startBuilder(session)
	case IntentAddToCart:
		if product, ok := models.MatchQuickMenu(lower); ok {
			c.startDirectCheckout(session, product)
		} else {
			c.reply(session, "No encontré ese platillo 😅 Este es nuestro menú:\n\n"+menuText())
		}
	case IntentInfo:
		c.reply(session, menuText())
	case IntentStatus:
		c.replyOrderStatus(session)
	default:
		c.sendGreeting(session)
	}
}

func (c *ConversationService) startBuilder(session *models.Session) {
	session.Mode = models.ModeBuilder
	session.Builder = models.NewBuilderState()
	c.replyButtons(session,
		"🥢 ¡Vamos a armar tu poke! Primero, ¿de qué tamaño lo quieres?",
		sizeButtons())
}

func (c *ConversationService) startDirectCheckout(session *models.Session, product models.Option) {
	session.Mode = models.ModeCheckout
	session.Builder = nil
	session.Checkout = &models.CheckoutState{
		Stage: models.CheckoutStageMethod,
		Items: []models.OrderItem{{Name: product.Name, Price: product.Price, Quantity: 1}},
	}
	c.replyButtons(session,
		fmt.Sprintf("¡Buena elección! *%s* ($%.0f) 😋\n¿Cómo quieres recibirlo?", product.Name, product.Price),
		deliveryButtons())
}

func (c *ConversationService) sendGreeting(session *models.Session) {
	name := session.Profile.Name
	greeting := "¡Hola"
	if name != "" {
		greeting += " " + name
	}
	greeting += "! 🐟 Bienvenido a Poke Loco. ¿Qué quieres hacer?"
	c.replyButtons(session, greeting, []Button{
		{ID: "start_builder", Title: "Armar mi poke"},
		{ID: "show_menu", Title: "Ver menú"},
		{ID: "order_status", Title: "Mi pedido"},
	})
}

func (c *ConversationService) replyOrderStatus(session *models.Session) {
	order, err := c.store.GetLatestOrderByPhone(session.Phone)
	if err != nil {
		c.reply(session, "No encontré pedidos recientes a tu nombre. ¿Quieres armar un poke? 🥢")
		return
	}
	c.reply(session, fmt.Sprintf("Tu pedido #%s está: %s", shortID(order.ID), StatusLabel(order.Status)))
}

func (c *ConversationService) analyzeIntent(ctx context.Context, session *models.Session, text string) Intent {
	if c.intent == nil {
		return IntentUnknown
	}
	return c.intent.AnalyzeIntent(ctx, text, session.History)
}

func (c *ConversationService) downloadMedia(mediaID string) *Media {
	if c.media == nil {
		return nil
	}
	return c.media.DownloadMedia(mediaID)
}

// reply sends a text message to the customer and records it in history.
func (c *ConversationService) reply(session *models.Session, text string) {
	session.AppendTurn(models.RoleBot, text)
	if result := c.whatsapp.SendText(session.Phone, text); !result.Success {
		log.Printf("❌ Failed to reply to %s: %s", session.Phone, result.Error)
	}
}

func (c *ConversationService) replyButtons(session *models.Session, text string, buttons []Button) {
	session.AppendTurn(models.RoleBot, text)
	if result := c.whatsapp.SendButtons(session.Phone, text, buttons); !result.Success {
		log.Printf("❌ Failed to reply to %s: %s", session.Phone, result.Error)
	}
}

func (c *ConversationService) lockPhone(phone string) func() {
	c.mu.Lock()
	lock, exists := c.locks[phone]
	if !exists {
		lock = &sync.Mutex{}
		c.locks[phone] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// StatusLabel is the customer-facing Spanish label for an order status.
func StatusLabel(status string) string {
	switch status {
	case models.OrderStatusPending:
		return "pendiente de confirmación ⏳"
	case models.OrderStatusAwaitingPayment:
		return "esperando tu pago 💳"
	case models.OrderStatusConfirmed:
		return "confirmado ✅"
	case models.OrderStatusPreparing:
		return "en preparación 👨‍🍳"
	case models.OrderStatusOnTheWay:
		return "en camino 🛵"
	case models.OrderStatusCompleted:
		return "entregado 🎉"
	case models.OrderStatusCancelled:
		return "cancelado ❌"
	}
	return status
}

func menuText() string {
	var sb strings.Builder
	sb.WriteString("📋 *Menú Poke Loco*\n\n")
	for _, p := range models.QuickMenu {
		fmt.Fprintf(&sb, "• %s — $%.0f\n", p.Name, p.Price)
	}
	sb.WriteString("\nO arma el tuyo paso a paso: escribe *armar* 🥢")
	return sb.String()
}

func sizeButtons() []Button {
	buttons := make([]Button, 0, len(models.Sizes))
	for _, s := range models.Sizes {
		buttons = append(buttons, Button{
			ID:    fmt.Sprintf("opt:%d", s.ID),
			Title: fmt.Sprintf("%s $%.0f", s.Name, s.Price),
		})
	}
	return buttons
}

func deliveryButtons() []Button {
	return []Button{
		{ID: "method:delivery", Title: "A domicilio 🛵"},
		{ID: "method:pickup", Title: "Recoger 🏪"},
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
