package storage

import (
	"errors"

	"github.com/pokeloco/pokebot-backend/internal/models"
)

// ErrNotFound is returned when a session or order does not exist.
var ErrNotFound = errors.New("not found")

var storeInstance Store

// SetStore sets the global store instance (call from main.go)
func SetStore(s Store) {
	storeInstance = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return storeInstance
}

// Store defines the interface for storage operations
type Store interface {
	// Session operations
	GetSession(phone string) (*models.Session, error)
	SaveSession(session *models.Session) error

	// Order operations
	CreateOrder(order *models.Order) (*models.Order, error)
	GetOrder(id string) (*models.Order, error)
	GetLatestOrderByPhone(phone string) (*models.Order, error)
	GetActiveOrders() ([]*models.Order, error)
	GetOrdersCreatedToday() ([]*models.Order, error)
	UpdateOrderStatus(id string, status string) error

	// Idempotency ledger. Returns true when the caller holds the claim and
	// may process the message; false when another delivery already did.
	ClaimMessage(messageID string) bool
}
