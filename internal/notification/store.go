package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// HistoryRecord is the persisted form of one delivery history entry.
type HistoryRecord struct {
	ID        uint   `gorm:"primarykey"`
	UserID    string `gorm:"index"`
	Type      string `gorm:"index"`
	Title     string
	Body      string
	Data      string // JSON-encoded map
	CreatedAt time.Time
}

// OfflineRecord is the persisted form of one queued offline notification.
// PriorityRank orders replay: higher ranks drain first.
type OfflineRecord struct {
	ID           uint   `gorm:"primarykey"`
	RecipientID  string `gorm:"index"`
	Type         string
	Title        string
	Body         string
	Data         string // JSON-encoded map
	Priority     string
	PriorityRank int `gorm:"index"`
	CreatedAt    time.Time
}

// OpenStore opens (or creates) the SQLite database at dbPath and migrates
// the pipeline's tables.
func OpenStore(dbPath string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open notification store %s: %w", dbPath, err)
	}
	if err := db.AutoMigrate(&HistoryRecord{}, &OfflineRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate notification store: %w", err)
	}
	return db, nil
}

// GormHistoryStore is the bundled HistoryStore implementation.
type GormHistoryStore struct {
	db *gorm.DB
}

// NewGormHistoryStore creates a history store over an open database.
func NewGormHistoryStore(db *gorm.DB) *GormHistoryStore {
	return &GormHistoryStore{db: db}
}

// Save persists one delivery history entry.
func (s *GormHistoryStore) Save(ctx context.Context, userID string, notifType Type, title, body string, data map[string]string) error {
	record := HistoryRecord{
		UserID: userID,
		Type:   string(notifType),
		Title:  title,
		Body:   body,
		Data:   encodeData(data),
	}
	return s.db.WithContext(ctx).Create(&record).Error
}

// RecentForUser returns the newest history entries for one user.
func (s *GormHistoryStore) RecentForUser(ctx context.Context, userID string, limit int) ([]HistoryRecord, error) {
	var records []HistoryRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// GormOfflineQueue is the bundled OfflineQueue implementation.
type GormOfflineQueue struct {
	db *gorm.DB
}

// NewGormOfflineQueue creates an offline queue over an open database.
func NewGormOfflineQueue(db *gorm.DB) *GormOfflineQueue {
	return &GormOfflineQueue{db: db}
}

// offlinePriorityRank maps replay priorities to sortable ranks.
func offlinePriorityRank(p OfflinePriority) int {
	switch p {
	case OfflinePriorityHigh:
		return 2
	case OfflinePriorityNormal:
		return 1
	default:
		return 0
	}
}

// Enqueue durably stores a notification for later replay.
func (q *GormOfflineQueue) Enqueue(ctx context.Context, n *OfflineNotification) error {
	record := OfflineRecord{
		RecipientID:  n.RecipientID,
		Type:         string(n.Type),
		Title:        n.Title,
		Body:         n.Body,
		Data:         encodeData(n.Data),
		Priority:     string(n.Priority),
		PriorityRank: offlinePriorityRank(n.Priority),
	}
	return q.db.WithContext(ctx).Create(&record).Error
}

// Drain removes and returns up to limit queued notifications, highest
// priority first, oldest first within a priority.
func (q *GormOfflineQueue) Drain(ctx context.Context, limit int) ([]*OfflineNotification, error) {
	var records []OfflineRecord
	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Order("priority_rank DESC, created_at ASC").
			Limit(limit).
			Find(&records).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		ids := make([]uint, len(records))
		for i := range records {
			ids[i] = records[i].ID
		}
		return tx.Delete(&OfflineRecord{}, ids).Error
	})
	if err != nil {
		return nil, err
	}

	out := make([]*OfflineNotification, 0, len(records))
	for i := range records {
		out = append(out, &OfflineNotification{
			RecipientID: records[i].RecipientID,
			Type:        Type(records[i].Type),
			Title:       records[i].Title,
			Body:        records[i].Body,
			Data:        decodeData(records[i].Data),
			Priority:    OfflinePriority(records[i].Priority),
		})
	}
	return out, nil
}

// Depth returns the number of queued notifications.
func (q *GormOfflineQueue) Depth(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&OfflineRecord{}).Count(&count).Error
	return count, err
}

func encodeData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}
	b, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return string(b)
}

func decodeData(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	return data
}
