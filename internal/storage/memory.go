package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pokeloco/pokebot-backend/internal/models"
)

// MemoryStore holds all data in memory, for tests and local development.
// Sessions and orders are stored as JSON blobs so reads exercise the same
// serialization path as the database store.
type MemoryStore struct {
	sessions map[string][]byte
	orders   map[string][]byte
	claimed  map[string]bool

	sessionMu sync.RWMutex
	orderMu   sync.RWMutex
	claimMu   sync.Mutex
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string][]byte),
		orders:   make(map[string][]byte),
		claimed:  make(map[string]bool),
	}
}

// Session operations

func (m *MemoryStore) GetSession(phone string) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	data, exists := m.sessions[models.NormalizePhone(phone)]
	if !exists {
		return nil, ErrNotFound
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (m *MemoryStore) SaveSession(session *models.Session) error {
	session.Phone = models.NormalizePhone(session.Phone)
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()
	m.sessions[session.Phone] = data
	return nil
}

// Order operations

func (m *MemoryStore) CreateOrder(order *models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CustomerPhone = models.NormalizePhone(order.CustomerPhone)
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	order.Total = models.ItemsTotal(order.Items)

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	data, err := json.Marshal(order)
	if err != nil {
		return nil, err
	}

	m.orderMu.Lock()
	defer m.orderMu.Unlock()
	m.orders[order.ID] = data
	return order, nil
}

func (m *MemoryStore) GetOrder(id string) (*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	data, exists := m.orders[id]
	if !exists {
		return nil, ErrNotFound
	}
	return unmarshalOrder(data)
}

func (m *MemoryStore) GetLatestOrderByPhone(phone string) (*models.Order, error) {
	phone = models.NormalizePhone(phone)

	orders, err := m.allOrders()
	if err != nil {
		return nil, err
	}

	var latest *models.Order
	for _, order := range orders {
		if order.CustomerPhone != phone {
			continue
		}
		if latest == nil || order.CreatedAt.After(latest.CreatedAt) {
			latest = order
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (m *MemoryStore) GetActiveOrders() ([]*models.Order, error) {
	orders, err := m.allOrders()
	if err != nil {
		return nil, err
	}

	var active []*models.Order
	for _, order := range orders {
		if !models.TerminalStatus(order.Status) {
			active = append(active, order)
		}
	}
	return active, nil
}

func (m *MemoryStore) GetOrdersCreatedToday() ([]*models.Order, error) {
	start := time.Now().Truncate(24 * time.Hour)

	orders, err := m.allOrders()
	if err != nil {
		return nil, err
	}

	var today []*models.Order
	for _, order := range orders {
		if !order.CreatedAt.Before(start) {
			today = append(today, order)
		}
	}
	return today, nil
}

func (m *MemoryStore) UpdateOrderStatus(id string, status string) error {
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("invalid order status: %s", status)
	}

	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	data, exists := m.orders[id]
	if !exists {
		return ErrNotFound
	}

	order, err := unmarshalOrder(data)
	if err != nil {
		return err
	}
	if models.TerminalStatus(order.Status) {
		return fmt.Errorf("order %s already %s", id, order.Status)
	}

	order.Status = status
	order.UpdatedAt = time.Now()

	updated, err := json.Marshal(order)
	if err != nil {
		return err
	}
	m.orders[id] = updated
	return nil
}

// Idempotency operations

func (m *MemoryStore) ClaimMessage(messageID string) bool {
	m.claimMu.Lock()
	defer m.claimMu.Unlock()

	if m.claimed[messageID] {
		return false
	}
	m.claimed[messageID] = true
	return true
}

func (m *MemoryStore) allOrders() ([]*models.Order, error) {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()

	orders := make([]*models.Order, 0, len(m.orders))
	for _, data := range m.orders {
		order, err := unmarshalOrder(data)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
	return orders, nil
}

func unmarshalOrder(data []byte) (*models.Order, error) {
	var order models.Order
	if err := json.Unmarshal(data, &order); err != nil {
		return nil, err
	}
	return &order, nil
}
