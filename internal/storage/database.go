package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/google/uuid"
	"github.com/pokeloco/pokebot-backend/internal/models"
)

// SessionRecord is the persisted shape of a session: the phone key plus the
// full session as a JSON blob. Mode is mirrored into its own column for
// reporting queries.
type SessionRecord struct {
	ID        uint   `gorm:"primaryKey"`
	Phone     string `gorm:"uniqueIndex;size:32"`
	Mode      string `gorm:"size:16"`
	Data      string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SessionRecord) TableName() string { return "sessions" }

// OrderRecord is the persisted shape of an order. Items are stored as JSON.
type OrderRecord struct {
	ID             string `gorm:"primaryKey;size:64"`
	CustomerPhone  string `gorm:"index;size:32"`
	CustomerName   string
	Items          string `gorm:"type:text"`
	Total          float64
	DeliveryMethod string `gorm:"size:16"`
	Address        string
	PickupTime     string `gorm:"size:64"`
	Status         string `gorm:"index;size:24"`
	Source         string `gorm:"size:8"`
	PaymentMethod  string `gorm:"size:24"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OrderRecord) TableName() string { return "orders" }

// DatabaseStore implements Store on PostgreSQL via GORM.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates the store and runs migrations.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	err := db.AutoMigrate(
		&SessionRecord{},
		&OrderRecord{},
		&models.ProcessedMessage{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &DatabaseStore{db: db}, nil
}

// Session operations

func (d *DatabaseStore) GetSession(phone string) (*models.Session, error) {
	phone = models.NormalizePhone(phone)

	var rec SessionRecord
	if err := d.db.Where("phone = ?", phone).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var session models.Session
	if err := json.Unmarshal([]byte(rec.Data), &session); err != nil {
		return nil, fmt.Errorf("corrupt session blob for %s: %w", phone, err)
	}
	return &session, nil
}

func (d *DatabaseStore) SaveSession(session *models.Session) error {
	session.Phone = models.NormalizePhone(session.Phone)
	session.UpdatedAt = time.Now()

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}

	var rec SessionRecord
	err = d.db.Where("phone = ?", session.Phone).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		rec = SessionRecord{
			Phone: session.Phone,
			Mode:  session.Mode,
			Data:  string(data),
		}
		return d.db.Create(&rec).Error
	}
	if err != nil {
		return err
	}

	rec.Mode = session.Mode
	rec.Data = string(data)
	return d.db.Save(&rec).Error
}

// Order operations

func (d *DatabaseStore) CreateOrder(order *models.Order) (*models.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CustomerPhone = models.NormalizePhone(order.CustomerPhone)
	if order.Status == "" {
		order.Status = models.OrderStatusPending
	}
	// Totals are never trusted from the caller.
	order.Total = models.ItemsTotal(order.Items)

	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	items, err := json.Marshal(order.Items)
	if err != nil {
		return nil, err
	}

	rec := OrderRecord{
		ID:             order.ID,
		CustomerPhone:  order.CustomerPhone,
		CustomerName:   order.CustomerName,
		Items:          string(items),
		Total:          order.Total,
		DeliveryMethod: order.DeliveryMethod,
		Address:        order.Address,
		PickupTime:     order.PickupTime,
		Status:         order.Status,
		Source:         order.Source,
		PaymentMethod:  order.PaymentMethod,
		CreatedAt:      order.CreatedAt,
		UpdatedAt:      order.UpdatedAt,
	}
	if err := d.db.Create(&rec).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (d *DatabaseStore) GetOrder(id string) (*models.Order, error) {
	var rec OrderRecord
	if err := d.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return recordToOrder(&rec)
}

func (d *DatabaseStore) GetLatestOrderByPhone(phone string) (*models.Order, error) {
	phone = models.NormalizePhone(phone)

	var rec OrderRecord
	err := d.db.Where("customer_phone = ?", phone).Order("created_at DESC").First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return recordToOrder(&rec)
}

func (d *DatabaseStore) GetActiveOrders() ([]*models.Order, error) {
	var recs []OrderRecord
	err := d.db.
		Where("status NOT IN ?", []string{models.OrderStatusCompleted, models.OrderStatusCancelled}).
		Order("created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recordsToOrders(recs)
}

func (d *DatabaseStore) GetOrdersCreatedToday() ([]*models.Order, error) {
	start := time.Now().Truncate(24 * time.Hour)

	var recs []OrderRecord
	err := d.db.Where("created_at >= ?", start).Order("created_at ASC").Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recordsToOrders(recs)
}

func (d *DatabaseStore) UpdateOrderStatus(id string, status string) error {
	if !models.ValidOrderStatus(status) {
		return fmt.Errorf("invalid order status: %s", status)
	}

	var rec OrderRecord
	if err := d.db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if models.TerminalStatus(rec.Status) {
		return fmt.Errorf("order %s already %s", id, rec.Status)
	}

	return d.db.Model(&rec).Update("status", status).Error
}

// Idempotency operations

func (d *DatabaseStore) ClaimMessage(messageID string) bool {
	err := d.db.Create(&models.ProcessedMessage{MessageID: messageID}).Error
	if err == nil {
		return true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
		return false
	}
	// Ambiguous storage failure: allow processing rather than block the
	// customer, accepting a small duplicate-processing risk.
	log.Printf("⚠️  Idempotency claim failed for %s, processing anyway: %v", messageID, err)
	return true
}

func recordToOrder(rec *OrderRecord) (*models.Order, error) {
	var items []models.OrderItem
	if rec.Items != "" {
		if err := json.Unmarshal([]byte(rec.Items), &items); err != nil {
			return nil, fmt.Errorf("corrupt items blob for order %s: %w", rec.ID, err)
		}
	}
	return &models.Order{
		ID:             rec.ID,
		CustomerPhone:  rec.CustomerPhone,
		CustomerName:   rec.CustomerName,
		Items:          items,
		Total:          rec.Total,
		DeliveryMethod: rec.DeliveryMethod,
		Address:        rec.Address,
		PickupTime:     rec.PickupTime,
		Status:         rec.Status,
		Source:         rec.Source,
		PaymentMethod:  rec.PaymentMethod,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
	}, nil
}

func recordsToOrders(recs []OrderRecord) ([]*models.Order, error) {
	orders := make([]*models.Order, 0, len(recs))
	for i := range recs {
		order, err := recordToOrder(&recs[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}
