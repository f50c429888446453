package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pokeloco/pokebot-backend/internal/models"
	"github.com/pokeloco/pokebot-backend/internal/storage"
)

type sentMessage struct {
	To      string
	Body    string
	Buttons []Button
}

// fakeSender records outbound WhatsApp messages.
type fakeSender struct {
	sent []sentMessage
}

func (f *fakeSender) SendText(to, body string) SendResult {
	f.sent = append(f.sent, sentMessage{To: to, Body: body})
	return SendResult{Success: true}
}

func (f *fakeSender) SendButtons(to, body string, buttons []Button) SendResult {
	f.sent = append(f.sent, sentMessage{To: to, Body: body, Buttons: buttons})
	return SendResult{Success: true}
}

// fakeOrderNotifier records operator notifications.
type fakeOrderNotifier struct {
	orders []*models.Order
}

func (f *fakeOrderNotifier) NotifyNewOrder(order *models.Order) {
	f.orders = append(f.orders, order)
}

func newTestConversation() (*ConversationService, *storage.MemoryStore, *fakeSender, *fakeOrderNotifier) {
	store := storage.NewMemoryStore()
	sender := &fakeSender{}
	notifier := &fakeOrderNotifier{}
	svc := NewConversationService(store, sender, nil, NewIntentService(nil), notifier)
	return svc, store, sender, notifier
}

const testPhone = "5219991234567"

func step(t *testing.T, svc *ConversationService, seq int, text, buttonID string) {
	t.Helper()
	err := svc.ProcessMessage(context.Background(), InboundMessage{
		MessageID: fmt.Sprintf("wamid.%d", seq),
		From:      testPhone,
		Text:      text,
		ButtonID:  buttonID,
	})
	assert.NoError(t, err)
}

func TestFirstMessageStartsBuilder(t *testing.T) {
	svc, store, sender, _ := newTestConversation()

	step(t, svc, 1, "quiero armar un poke", "")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeBuilder, session.Mode)
	assert.NotNil(t, session.Builder)
	assert.Equal(t, models.StepSize, session.Builder.Step)

	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "tamaño")
	assert.NotEmpty(t, sender.sent[0].Buttons)
}

func TestGreetingCreatesNormalSession(t *testing.T) {
	svc, store, sender, _ := newTestConversation()

	step(t, svc, 1, "hola", "")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeNormal, session.Mode)
	assert.Len(t, session.History, 2, "inbound plus reply")
	assert.Len(t, sender.sent, 1)
}

func TestFullBuilderFlowCreatesPendingOrder(t *testing.T) {
	svc, store, _, notifier := newTestConversation()

	step(t, svc, 1, "quiero armar un poke", "")
	step(t, svc, 2, "", "opt:2")        // size: Mediano
	step(t, svc, 3, "1", "")            // base: Arroz blanco
	step(t, svc, 4, "atún y salmón", "")// proteins (Mediano allows 2, auto-advance)
	step(t, svc, 5, "aguacate", "")     // topping
	step(t, svc, 6, "listo", "")        // done with toppings
	step(t, svc, 7, "ponzu", "")        // sauce -> checkout
	step(t, svc, 8, "", "method:pickup")
	step(t, svc, 9, "2:30 pm", "")
	step(t, svc, 10, "", "confirm:yes")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeNormal, session.Mode)
	assert.Nil(t, session.Builder)
	assert.Nil(t, session.Checkout)

	order, err := store.GetLatestOrderByPhone(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.OrderSourceBot, order.Source)
	assert.Equal(t, models.DeliveryMethodPickup, order.DeliveryMethod)
	assert.Equal(t, "2:30 pm", order.PickupTime)
	assert.Len(t, order.Items, 1)
	// Mediano 159 + avocado topping 20
	assert.Equal(t, 179.0, order.Total)

	assert.Len(t, notifier.orders, 1)
	assert.Equal(t, order.ID, notifier.orders[0].ID)
}

func TestBuilderCancelReturnsToNormal(t *testing.T) {
	svc, store, _, notifier := newTestConversation()

	step(t, svc, 1, "quiero armar un poke", "")
	step(t, svc, 2, "ya no, cancelar", "")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeNormal, session.Mode)
	assert.Nil(t, session.Builder)
	assert.Empty(t, notifier.orders)
}

func TestDirectAddSkipsBuilder(t *testing.T) {
	svc, store, sender, _ := newTestConversation()

	step(t, svc, 1, "quiero el poke vegetariano", "")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeCheckout, session.Mode)
	assert.Nil(t, session.Builder)
	assert.NotNil(t, session.Checkout)
	assert.Len(t, session.Checkout.Items, 1)
	assert.Equal(t, "Poke Vegetariano", session.Checkout.Items[0].Name)

	last := sender.sent[len(sender.sent)-1]
	assert.NotEmpty(t, last.Buttons, "asks for delivery method")
}

func TestDeliveryAddressIsRemembered(t *testing.T) {
	svc, store, _, _ := newTestConversation()

	step(t, svc, 1, "quiero el poke vegetariano", "")
	step(t, svc, 2, "", "method:delivery")
	step(t, svc, 3, "Av. Reforma 123, depto 4", "")
	step(t, svc, 4, "", "confirm:yes")

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, "Av. Reforma 123, depto 4", session.Profile.LastAddress)

	order, err := store.GetLatestOrderByPhone(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.DeliveryMethodDelivery, order.DeliveryMethod)
	assert.Equal(t, "Av. Reforma 123, depto 4", order.Address)
}

func TestPausedSessionLogsButDoesNotAdvance(t *testing.T) {
	svc, store, sender, _ := newTestConversation()

	session := models.NewSession(testPhone)
	until := time.Now().Add(30 * time.Minute)
	session.Mode = models.ModePaused
	session.PausedUntil = &until
	assert.NoError(t, store.SaveSession(session))

	step(t, svc, 1, "quiero armar un poke", "")

	loaded, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModePaused, loaded.Mode)
	assert.Nil(t, loaded.Builder, "flow must not advance while paused")
	assert.NotEmpty(t, loaded.History, "inbound is still logged")

	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "equipo")
}

func TestExpiredPauseRevertsToNormal(t *testing.T) {
	svc, store, _, _ := newTestConversation()

	session := models.NewSession(testPhone)
	until := time.Now().Add(-time.Minute)
	session.Mode = models.ModePaused
	session.PausedUntil = &until
	assert.NoError(t, store.SaveSession(session))

	step(t, svc, 1, "quiero armar un poke", "")

	loaded, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, models.ModeBuilder, loaded.Mode)
	assert.Nil(t, loaded.PausedUntil)
}

func TestStatusQueryReportsLatestOrder(t *testing.T) {
	svc, store, sender, _ := newTestConversation()

	_, err := store.CreateOrder(&models.Order{
		CustomerPhone: testPhone,
		Items:         []models.OrderItem{{Name: "Poke", Price: 169, Quantity: 1}},
		Status:        models.OrderStatusPreparing,
	})
	assert.NoError(t, err)

	step(t, svc, 1, "cómo va mi pedido?", "")

	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "preparación")
}

func TestContactNameIsCapturedIntoProfile(t *testing.T) {
	svc, store, _, _ := newTestConversation()

	err := svc.ProcessMessage(context.Background(), InboundMessage{
		MessageID: "wamid.1",
		From:      testPhone,
		Name:      "Ana López",
		Text:      "hola",
	})
	assert.NoError(t, err)

	session, err := store.GetSession(testPhone)
	assert.NoError(t, err)
	assert.Equal(t, "Ana López", session.Profile.Name)
}

func TestMatchOptionsByIndexAndName(t *testing.T) {
	ids := matchOptions("1 y atun", models.Proteins)
	assert.Contains(t, ids, 101) // index 1 == Atún, plus accent-folded name

	ids = matchOptions("salmón, camarón", models.Proteins)
	assert.ElementsMatch(t, []int{102, 103}, ids)

	assert.Empty(t, matchOptions("algo rarísimo", models.Proteins))
}
