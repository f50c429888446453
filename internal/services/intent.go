package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/pokeloco/pokebot-backend/internal/models"
)

// Intent is the closed set of actions a customer message can map to.
type Intent string

const (
	IntentStartBuilder Intent = "START_BUILDER"
	IntentAddToCart    Intent = "ADD_TO_CART"
	IntentInfo         Intent = "INFO"
	IntentStatus       Intent = "STATUS"
	IntentOther        Intent = "OTHER"
	IntentUnknown      Intent = "unknown"
)

// maxPromptTextLen bounds user text before it is interpolated into a prompt.
const maxPromptTextLen = 500

// injectionPatterns strips known prompt-injection phrasings before the text
// reaches the model. Best effort, not a security boundary: the hard
// guarantees are the post-hoc filters on the model's output.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all )?(previous|prior|above) (instructions|prompts)`),
	regexp.MustCompile(`(?i)disregard (all )?(previous|prior|above) (instructions|prompts)`),
	regexp.MustCompile(`(?i)ignora (todas )?las instrucciones (anteriores|previas)`),
	regexp.MustCompile(`(?i)olvida (todas )?(las )?instrucciones`),
	regexp.MustCompile(`(?i)you are now`),
	regexp.MustCompile(`(?i)ahora eres`),
	regexp.MustCompile(`(?i)system prompt`),
}

// IntentService maps free text to structured intents and option selections.
// A nil LLM client degrades every call to a deterministic fallback.
type IntentService struct {
	llm LLMClient
}

// NewIntentService creates the interpreter. llm may be nil.
func NewIntentService(llm LLMClient) *IntentService {
	return &IntentService{llm: llm}
}

// Enabled reports whether a model is configured.
func (s *IntentService) Enabled() bool {
	return s.llm != nil
}

// InterpretSelection maps free text to a subset of the candidate options.
// Every returned id is guaranteed to be in the candidate set: ids the model
// fabricates are discarded. Any failure yields an empty selection.
func (s *IntentService) InterpretSelection(ctx context.Context, text string, options []models.Option) []int {
	if s.llm == nil || len(options) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, o := range options {
		fmt.Fprintf(&sb, "%d: %s\n", o.ID, o.Name)
	}

	system := "Eres un asistente que interpreta pedidos de comida. " +
		"Dada una lista de opciones con id, responde SOLO con JSON de la forma " +
		`{"ids":[...]} con los ids de las opciones que el cliente eligió. ` +
		"Si ninguna coincide responde {\"ids\":[]}.\nOpciones:\n" + sb.String()

	reply, err := s.llm.Chat(ctx, system, Sanitize(text))
	if err != nil {
		log.Printf("⚠️  Selection interpretation failed: %v", err)
		return nil
	}

	var parsed struct {
		IDs []int `json:"ids"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		log.Printf("⚠️  Unparseable selection reply: %s", reply)
		return nil
	}

	// Hard invariant: output ⊆ candidate ids.
	allowed := make(map[int]bool, len(options))
	for _, o := range options {
		allowed[o.ID] = true
	}

	var ids []int
	for _, id := range parsed.IDs {
		if allowed[id] {
			ids = append(ids, id)
		}
	}
	return ids
}

// AnalyzeIntent classifies a message into the fixed intent enumeration.
// Anything the model returns outside the enumeration is coerced to unknown.
func (s *IntentService) AnalyzeIntent(ctx context.Context, text string, history []models.Turn) Intent {
	if s.llm == nil {
		return IntentUnknown
	}

	var sb strings.Builder
	start := 0
	if len(history) > 6 {
		start = len(history) - 6
	}
	for _, turn := range history[start:] {
		fmt.Fprintf(&sb, "%s: %s\n", turn.Role, Sanitize(turn.Text))
	}

	system := "Clasifica el mensaje del cliente de un restaurante de poke bowls. " +
		`Responde SOLO con JSON {"intent":"..."} donde intent es uno de: ` +
		"START_BUILDER (quiere armar un poke), ADD_TO_CART (quiere un producto del menú), " +
		"INFO (pregunta por menú/horarios/precios), STATUS (pregunta por su pedido), OTHER.\n" +
		"Conversación reciente:\n" + sb.String()

	reply, err := s.llm.Chat(ctx, system, Sanitize(text))
	if err != nil {
		log.Printf("⚠️  Intent analysis failed: %v", err)
		return IntentUnknown
	}

	var parsed struct {
		Intent string `json:"intent"`
	}
	if err := json.Unmarshal([]byte(reply), &parsed); err != nil {
		return IntentUnknown
	}
	return CoerceIntent(parsed.Intent)
}

// CoerceIntent normalizes arbitrary model output into the closed enumeration.
func CoerceIntent(raw string) Intent {
	switch Intent(strings.ToUpper(strings.TrimSpace(raw))) {
	case IntentStartBuilder:
		return IntentStartBuilder
	case IntentAddToCart:
		return IntentAddToCart
	case IntentInfo:
		return IntentInfo
	case IntentStatus:
		return IntentStatus
	case IntentOther:
		return IntentOther
	}
	return IntentUnknown
}

// Sanitize strips known prompt-injection phrasings and truncates the text
// before it is interpolated into a model prompt.
func Sanitize(text string) string {
	for _, pattern := range injectionPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) > maxPromptTextLen {
		text = string(runes[:maxPromptTextLen])
	}
	return text
}
