package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/pokeloco/pokebot-backend/internal/services"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

// WhatsAppHandler handles the WhatsApp Cloud API webhook.
type WhatsAppHandler struct {
	store        storage.Store
	conversation *services.ConversationService
	verifyToken  string
}

// NewWhatsAppHandler creates a new WhatsApp handler
func NewWhatsAppHandler(store storage.Store, conversation *services.ConversationService, verifyToken string) *WhatsAppHandler {
	return &WhatsAppHandler{
		store:        store,
		conversation: conversation,
		verifyToken:  verifyToken,
	}
}

// webhookPayload is the Cloud API event envelope. Only the shapes the bot
// understands are modeled; anything else is logged and skipped.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Contacts []struct {
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
					WaID string `json:"wa_id"`
				} `json:"contacts"`
				Messages []inboundWebhookMessage `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type inboundWebhookMessage struct {
	ID   string `json:"id"`
	From string `json:"from"`
	Type string `json:"type"`
	Text struct {
		Body string `json:"body"`
	} `json:"text"`
	Interactive struct {
		ButtonReply struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply"`
	} `json:"interactive"`
	Image    struct{ ID string } `json:"image"`
	Audio    struct{ ID string } `json:"audio"`
	Document struct{ ID string } `json:"document"`
}

// HandleVerify answers the subscription handshake: echo hub.challenge iff
// mode is "subscribe" and the verify token matches.
func (h *WhatsAppHandler) HandleVerify(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.verifyToken != "" && token == h.verifyToken {
		log.Println("✅ WhatsApp webhook verified")
		return c.SendString(challenge)
	}
	return c.SendStatus(fiber.StatusForbidden)
}

// HandleWebhook processes incoming WhatsApp events. Signature verification
// already happened in middleware. Each message id is claimed exactly once;
// duplicates from provider retries are acknowledged and skipped.
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload webhookPayload
	if err := c.BodyParser(&payload); err != nil {
		log.Printf("⚠️  Unrecognized webhook payload: %v", err)
		// Acknowledge anyway: a non-2xx here only triggers a retry storm.
		return c.SendStatus(fiber.StatusOK)
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			name := ""
			if len(change.Value.Contacts) > 0 {
				name = change.Value.Contacts[0].Profile.Name
			}

			for _, msg := range change.Value.Messages {
				h.processMessage(c, msg, name)
			}
		}
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *WhatsAppHandler) processMessage(c *fiber.Ctx, msg inboundWebhookMessage, contactName string) {
	if msg.ID == "" || msg.From == "" {
		log.Printf("⚠️  Skipping message without id/from (type %s)", msg.Type)
		return
	}

	if !h.store.ClaimMessage(msg.ID) {
		log.Printf("🔁 Duplicate delivery of %s, skipping", msg.ID)
		return
	}

	inbound := services.InboundMessage{
		MessageID: msg.ID,
		From:      msg.From,
		Name:      contactName,
	}

	switch msg.Type {
	case "text":
		inbound.Text = msg.Text.Body
	case "interactive":
		inbound.ButtonID = msg.Interactive.ButtonReply.ID
		inbound.Text = msg.Interactive.ButtonReply.Title
	case "image":
		inbound.MediaID = msg.Image.ID
	case "audio":
		inbound.MediaID = msg.Audio.ID
	case "document":
		inbound.MediaID = msg.Document.ID
	default:
		log.Printf("⚠️  Unsupported message type %q from %s, skipping", msg.Type, msg.From)
		return
	}

	log.Printf("📱 WhatsApp message from %s: %s", msg.From, inbound.Text)

	if err := h.conversation.ProcessMessage(c.Context(), inbound); err != nil {
		// Converted to a log here: the provider already got its ack and the
		// customer at worst misses one reply.
		log.Printf("❌ Error processing message %s: %v", msg.ID, err)
	}
}
