// Package store persists client state between runs. It is a small
// key-value table over a local sqlite file: each state container owns a
// fixed set of keys and writes JSON-serialized slices of its state.
package store

import (
	"encoding/json"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage keys. Each container reads and writes only its own keys.
const (
	KeyToken       = "token"
	KeyUser        = "user"
	KeyMesa        = "mesa"
	KeyMesaSession = "mesaSession"
	KeyCart        = "cart"
	KeyPedidosMesa = "pedidosMesa"
)

// Entry is one persisted key-value pair
type Entry struct {
	Key   string `gorm:"primaryKey" json:"key"`
	Value string `gorm:"not null" json:"value"`
}

// TableName specifies the table name for the Entry model
func (Entry) TableName() string {
	return "entries"
}

// Store wraps the sqlite-backed key-value table
type Store struct {
	db *gorm.DB
}

// Open opens (or creates) the store at the given path. Use ":memory:"
// for an ephemeral store in tests.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", path, err)
	}

	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetItem returns the raw stored value for key, and whether it was present.
func (s *Store) GetItem(key string) (string, bool) {
	var entry Entry
	if err := s.db.First(&entry, "key = ?", key).Error; err != nil {
		return "", false
	}
	return entry.Value, true
}

// SetItem stores value under key, replacing any previous value.
func (s *Store) SetItem(key, value string) error {
	entry := Entry{Key: key, Value: value}
	if err := s.db.Save(&entry).Error; err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the value stored under key. Removing an absent key
// is not an error.
func (s *Store) RemoveItem(key string) error {
	if err := s.db.Delete(&Entry{}, "key = ?", key).Error; err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// LoadJSON decodes the value stored under key into out. Absent keys,
// the literal strings "undefined" and "null", and malformed JSON all
// leave out at its zero value and report false. Bad persisted state is
// discarded, never an error the caller has to handle.
func (s *Store) LoadJSON(key string, out any) bool {
	stored, ok := s.GetItem(key)
	if !ok || stored == "" || stored == "undefined" || stored == "null" {
		return false
	}

	if err := json.Unmarshal([]byte(stored), out); err != nil {
		return false
	}
	return true
}

// SaveJSON serializes value and stores it under key.
func (s *Store) SaveJSON(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", key, err)
	}
	return s.SetItem(key, string(data))
}

// LoadString returns the stored value for key, treating "undefined" and
// "null" as absent. Tokens are stored raw, not JSON-encoded.
func (s *Store) LoadString(key string) string {
	stored, ok := s.GetItem(key)
	if !ok || stored == "undefined" || stored == "null" {
		return ""
	}
	return stored
}
