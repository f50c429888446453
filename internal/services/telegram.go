package services

import (
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pokeloco/pokebot-backend/internal/config"
)

// TelegramNotifier is the operator-console messaging surface.
type TelegramNotifier interface {
	SendMessage(text string, keyboard [][]Button) (int, SendResult)
	EditMessage(messageID int, text string, keyboard [][]Button) SendResult
	AnswerCallback(callbackID, text string) SendResult
}

// telegramAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramService sends operator-facing messages to the configured chat.
// Without a bot token it runs in mock mode like the WhatsApp adapter.
type TelegramService struct {
	bot    telegramAPI
	chatID int64
}

// NewTelegramService creates the adapter. Returns a mock-mode service when
// credentials are absent or the Telegram handshake fails.
func NewTelegramService(cfg *config.Config) *TelegramService {
	if !cfg.TelegramConfigured() {
		log.Println("⚠️  Telegram credentials not found - operator console in mock mode")
		return &TelegramService{chatID: cfg.TelegramChatID}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Printf("⚠️  Telegram bot init failed, falling back to mock mode: %v", err)
		return &TelegramService{chatID: cfg.TelegramChatID}
	}

	log.Printf("✅ Telegram operator console connected as @%s", bot.Self.UserName)
	return &TelegramService{bot: bot, chatID: cfg.TelegramChatID}
}

// Mocked reports whether the adapter is running without credentials.
func (t *TelegramService) Mocked() bool {
	return t.bot == nil
}

// SendMessage sends a message to the operator chat, optionally with an
// inline keyboard. Returns the Telegram message id for later edits.
func (t *TelegramService) SendMessage(text string, keyboard [][]Button) (int, SendResult) {
	if t.Mocked() {
		log.Printf("📤 [MOCK] Telegram message: %s", text)
		return 0, SendResult{Success: true, Mocked: true}
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	if markup := inlineKeyboard(keyboard); markup != nil {
		msg.ReplyMarkup = markup
	}

	sent, err := t.bot.Send(msg)
	if err != nil {
		log.Printf("❌ Telegram send failed: %v", err)
		return 0, SendResult{Error: err.Error()}
	}
	return sent.MessageID, SendResult{Success: true}
}

// EditMessage rewrites an operator message in place, replacing its keyboard.
func (t *TelegramService) EditMessage(messageID int, text string, keyboard [][]Button) SendResult {
	if t.Mocked() {
		log.Printf("📤 [MOCK] Telegram edit %d: %s", messageID, text)
		return SendResult{Success: true, Mocked: true}
	}

	edit := tgbotapi.NewEditMessageText(t.chatID, messageID, text)
	if markup := inlineKeyboard(keyboard); markup != nil {
		edit.ReplyMarkup = markup
	}

	if _, err := t.bot.Send(edit); err != nil {
		log.Printf("❌ Telegram edit failed: %v", err)
		return SendResult{Error: err.Error()}
	}
	return SendResult{Success: true}
}

// AnswerCallback dismisses the loading indicator on an operator button press.
// Always attempted, even after a logical failure, so the operator's client
// never hangs.
func (t *TelegramService) AnswerCallback(callbackID, text string) SendResult {
	if t.Mocked() {
		log.Printf("📤 [MOCK] Telegram callback answer %s: %s", callbackID, text)
		return SendResult{Success: true, Mocked: true}
	}

	callback := tgbotapi.NewCallback(callbackID, text)
	if _, err := t.bot.Request(callback); err != nil {
		log.Printf("❌ Telegram callback answer failed: %v", err)
		return SendResult{Error: err.Error()}
	}
	return SendResult{Success: true}
}

func inlineKeyboard(rows [][]Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Title, b.ID))
		}
		keyboardRows = append(keyboardRows, buttons)
	}

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
	return &markup
}
