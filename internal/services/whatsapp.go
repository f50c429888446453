package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pokeloco/pokebot-backend/internal/config"
)

// Provider limits for interactive reply buttons.
const (
	maxReplyButtons   = 3
	maxButtonTitleLen = 20
)

// SendResult is the structured outcome of an outbound send. Adapters never
// return an error for provider failures; callers decide how to degrade.
type SendResult struct {
	Success   bool   `json:"success"`
	Mocked    bool   `json:"mocked,omitempty"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Button is one interactive reply button.
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Media is a downloaded attachment, base64-encoded for storage/forwarding.
type Media struct {
	MimeType   string `json:"mime_type"`
	Base64Data string `json:"base64_data"`
}

// WhatsAppSender sends customer-facing messages.
type WhatsAppSender interface {
	SendText(to, body string) SendResult
	SendButtons(to, body string, buttons []Button) SendResult
}

// MediaDownloader resolves a provider media handle to bytes.
type MediaDownloader interface {
	DownloadMedia(mediaID string) *Media
}

// WhatsAppService talks to the WhatsApp Cloud API (graph.facebook.com).
// With no credentials configured it runs in mock mode: every send is logged
// and reported successful without a network call.
type WhatsAppService struct {
	token   string
	phoneID string
	version string
	baseURL string
	client  *http.Client
}

// NewWhatsAppService creates the adapter from configuration.
func NewWhatsAppService(cfg *config.Config) *WhatsAppService {
	if !cfg.WhatsAppConfigured() {
		log.Println("⚠️  WhatsApp credentials not found - running in mock mode")
	}
	return &WhatsAppService{
		token:   cfg.WhatsAppToken,
		phoneID: cfg.WhatsAppPhoneID,
		version: cfg.GraphAPIVersion,
		baseURL: "https://graph.facebook.com",
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Mocked reports whether the adapter is running without credentials.
func (w *WhatsAppService) Mocked() bool {
	return w.token == "" || w.phoneID == ""
}

// SendText sends a plain text message.
func (w *WhatsAppService) SendText(to, body string) SendResult {
	if w.Mocked() {
		log.Printf("📤 [MOCK] WhatsApp text to %s: %s", to, body)
		return SendResult{Success: true, Mocked: true}
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return w.postMessage(payload)
}

// SendButtons sends an interactive message with up to 3 reply buttons.
// Titles beyond the provider's 20-character limit are truncated.
func (w *WhatsAppService) SendButtons(to, body string, buttons []Button) SendResult {
	if len(buttons) > maxReplyButtons {
		buttons = buttons[:maxReplyButtons]
	}

	if w.Mocked() {
		log.Printf("📤 [MOCK] WhatsApp buttons to %s: %s %v", to, body, buttons)
		return SendResult{Success: true, Mocked: true}
	}

	btns := make([]map[string]interface{}, 0, len(buttons))
	for _, b := range buttons {
		title := b.Title
		if len([]rune(title)) > maxButtonTitleLen {
			title = string([]rune(title)[:maxButtonTitleLen])
		}
		btns = append(btns, map[string]interface{}{
			"type":  "reply",
			"reply": map[string]string{"id": b.ID, "title": title},
		})
	}

	payload := map[string]interface{}{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "interactive",
		"interactive": map[string]interface{}{
			"type":   "button",
			"body":   map[string]string{"text": body},
			"action": map[string]interface{}{"buttons": btns},
		},
	}
	return w.postMessage(payload)
}

// DownloadMedia resolves a media id in two steps: fetch the short-lived
// signed URL plus MIME type, then fetch the binary. Returns nil on any
// failure so the caller can degrade without crashing the turn.
func (w *WhatsAppService) DownloadMedia(mediaID string) *Media {
	if w.Mocked() {
		log.Printf("📎 [MOCK] WhatsApp media download skipped: %s", mediaID)
		return nil
	}

	metaURL := fmt.Sprintf("%s/%s/%s", w.baseURL, w.version, mediaID)
	body, err := w.get(metaURL)
	if err != nil {
		log.Printf("❌ Failed to resolve media %s: %v", mediaID, err)
		return nil
	}

	var meta struct {
		URL      string `json:"url"`
		MimeType string `json:"mime_type"`
	}
	if err := json.Unmarshal(body, &meta); err != nil || meta.URL == "" {
		log.Printf("❌ Bad media metadata for %s: %v", mediaID, err)
		return nil
	}

	data, err := w.get(meta.URL)
	if err != nil {
		log.Printf("❌ Failed to download media %s: %v", mediaID, err)
		return nil
	}

	return &Media{
		MimeType:   meta.MimeType,
		Base64Data: base64.StdEncoding.EncodeToString(data),
	}
}

func (w *WhatsAppService) postMessage(payload map[string]interface{}) SendResult {
	data, err := json.Marshal(payload)
	if err != nil {
		return SendResult{Error: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/%s/messages", w.baseURL, w.version, w.phoneID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return SendResult{Error: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		log.Printf("❌ WhatsApp send failed: %v", err)
		return SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("❌ WhatsApp API error %d: %s", resp.StatusCode, string(respBody))
		return SendResult{Error: fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody))}
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	_ = json.Unmarshal(respBody, &parsed)

	result := SendResult{Success: true}
	if len(parsed.Messages) > 0 {
		result.MessageID = parsed.Messages[0].ID
	}
	log.Printf("✅ WhatsApp message sent! ID: %s", result.MessageID)
	return result
}

func (w *WhatsAppService) get(url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+w.token)

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
