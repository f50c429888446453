package models

import (
	"strings"
	"time"
)

// Conversation modes. The mode decides which inputs a session accepts.
const (
	ModeNormal   = "NORMAL"
	ModeBuilder  = "BUILDER"
	ModeCheckout = "CHECKOUT"
	ModePaused   = "PAUSED"
)

// Turn roles for the conversation history.
const (
	RoleUser = "user"
	RoleBot  = "bot"
)

// MaxHistoryTurns caps the conversation history kept per session so the
// session row cannot grow without bound.
const MaxHistoryTurns = 50

// Turn is a single message in the conversation history.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// CustomerProfile holds details learned opportunistically over the conversation.
type CustomerProfile struct {
	Name        string   `json:"name,omitempty"`
	Favorites   []string `json:"favorites,omitempty"`
	LastAddress string   `json:"last_address,omitempty"`
}

// Session is the per-phone conversational state. One session per phone number,
// created lazily on the first inbound message and rehydrated from storage on
// every webhook delivery.
type Session struct {
	Phone       string          `json:"phone"`
	Mode        string          `json:"mode"`
	History     []Turn          `json:"history"`
	Profile     CustomerProfile `json:"profile"`
	Builder     *BuilderState   `json:"builder,omitempty"`
	Checkout    *CheckoutState  `json:"checkout,omitempty"`
	PausedUntil *time.Time      `json:"paused_until,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewSession creates a fresh NORMAL session for a phone number.
func NewSession(phone string) *Session {
	now := time.Now()
	return &Session{
		Phone:     phone,
		Mode:      ModeNormal,
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AppendTurn adds a message to the history, trimming to MaxHistoryTurns.
func (s *Session) AppendTurn(role, text string) {
	s.History = append(s.History, Turn{Role: role, Text: text, Timestamp: time.Now()})
	if len(s.History) > MaxHistoryTurns {
		s.History = s.History[len(s.History)-MaxHistoryTurns:]
	}
}

// IsPaused reports whether the bot is currently suppressed for this session.
// An expired pause window counts as not paused.
func (s *Session) IsPaused() bool {
	if s.Mode != ModePaused {
		return false
	}
	if s.PausedUntil != nil && time.Now().After(*s.PausedUntil) {
		return false
	}
	return true
}

// NormalizePhone strips everything but digits so the historical phone formats
// (web checkout vs bot, with or without "whatsapp:"/"+" prefixes) collapse
// into one identity at the persistence boundary.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
