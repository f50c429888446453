package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pokeloco/pokebot-backend/internal/models"
)

func TestClaimMessageExactlyOnce(t *testing.T) {
	store := NewMemoryStore()

	assert.True(t, store.ClaimMessage("wamid.ABC123"))
	assert.False(t, store.ClaimMessage("wamid.ABC123"), "second claim must be rejected")
	assert.True(t, store.ClaimMessage("wamid.XYZ789"), "unrelated ids are independent")
}

func TestSessionRoundTripPreservesBuilderState(t *testing.T) {
	store := NewMemoryStore()

	session := models.NewSession("5219991234567")
	session.Mode = models.ModeBuilder
	session.Builder = &models.BuilderState{
		Step:       models.StepProteins,
		SizeID:     2,
		BaseID:     11,
		ProteinIDs: []int{101},
	}
	session.AppendTurn(models.RoleUser, "quiero armar un poke")
	session.AppendTurn(models.RoleBot, "¿De qué tamaño?")
	session.Profile.Name = "Ana"

	assert.NoError(t, store.SaveSession(session))

	loaded, err := store.GetSession("5219991234567")
	assert.NoError(t, err)
	assert.Equal(t, models.ModeBuilder, loaded.Mode)
	assert.NotNil(t, loaded.Builder)
	assert.Equal(t, models.StepProteins, loaded.Builder.Step)
	assert.Equal(t, 2, loaded.Builder.SizeID)
	assert.Equal(t, []int{101}, loaded.Builder.ProteinIDs)
	assert.Len(t, loaded.History, 2)
	assert.Equal(t, "Ana", loaded.Profile.Name)
}

func TestGetSessionNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.GetSession("0000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSessionHistoryIsCapped(t *testing.T) {
	session := models.NewSession("5219991234567")
	for i := 0; i < models.MaxHistoryTurns+20; i++ {
		session.AppendTurn(models.RoleUser, "hola")
	}
	assert.Len(t, session.History, models.MaxHistoryTurns)
}

func TestCreateOrderRecomputesTotal(t *testing.T) {
	store := NewMemoryStore()

	order, err := store.CreateOrder(&models.Order{
		CustomerPhone: "+52 1 999 123 4567",
		Items: []models.OrderItem{
			{Name: "Poke Clásico de Atún", Price: 169, Quantity: 2},
			{Name: "Poke Vegetariano", Price: 149, Quantity: 1},
		},
		Total:  1, // client-supplied total must be ignored
		Source: models.OrderSourceWeb,
	})
	assert.NoError(t, err)
	assert.Equal(t, 487.0, order.Total)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, "5219991234567", order.CustomerPhone, "phone must be normalized")
}

func TestGetLatestOrderByPhoneNormalizesLookup(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.CreateOrder(&models.Order{
		CustomerPhone: "5219991234567",
		Items:         []models.OrderItem{{Name: "Poke", Price: 169, Quantity: 1}},
	})
	assert.NoError(t, err)

	order, err := store.GetLatestOrderByPhone("+52 1 999 123 4567")
	assert.NoError(t, err)
	assert.Equal(t, "5219991234567", order.CustomerPhone)
}

func TestUpdateOrderStatus(t *testing.T) {
	store := NewMemoryStore()

	order, err := store.CreateOrder(&models.Order{
		CustomerPhone: "5219991234567",
		Items:         []models.OrderItem{{Name: "Poke", Price: 169, Quantity: 1}},
	})
	assert.NoError(t, err)

	assert.NoError(t, store.UpdateOrderStatus(order.ID, models.OrderStatusConfirmed))

	updated, err := store.GetOrder(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, updated.Status)

	assert.Error(t, store.UpdateOrderStatus(order.ID, "exploded"), "unknown status is rejected")
	assert.ErrorIs(t, store.UpdateOrderStatus("missing", models.OrderStatusConfirmed), ErrNotFound)
}

func TestUpdateOrderStatusRejectsTerminalTransitions(t *testing.T) {
	store := NewMemoryStore()

	order, err := store.CreateOrder(&models.Order{
		CustomerPhone: "5219991234567",
		Items:         []models.OrderItem{{Name: "Poke", Price: 169, Quantity: 1}},
	})
	assert.NoError(t, err)

	assert.NoError(t, store.UpdateOrderStatus(order.ID, models.OrderStatusCancelled))
	assert.Error(t, store.UpdateOrderStatus(order.ID, models.OrderStatusConfirmed),
		"cancelled orders cannot move again")
}

func TestGetActiveOrdersSkipsTerminal(t *testing.T) {
	store := NewMemoryStore()

	first, _ := store.CreateOrder(&models.Order{
		CustomerPhone: "5219991234567",
		Items:         []models.OrderItem{{Name: "Poke", Price: 169, Quantity: 1}},
	})
	_, _ = store.CreateOrder(&models.Order{
		CustomerPhone: "5219997654321",
		Items:         []models.OrderItem{{Name: "Poke", Price: 149, Quantity: 1}},
	})
	assert.NoError(t, store.UpdateOrderStatus(first.ID, models.OrderStatusCancelled))

	active, err := store.GetActiveOrders()
	assert.NoError(t, err)
	assert.Len(t, active, 1)
	assert.Equal(t, "5219997654321", active[0].CustomerPhone)
}
