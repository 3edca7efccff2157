package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BlockRecord summarises an indexed block.
type BlockRecord struct {
	Height    uint64 `gorm:"primaryKey;autoIncrement:false"`
	StateRoot string `gorm:"size:66"`
	TxCount   int
	Timestamp time.Time
	CreatedAt time.Time
}

// EventRecord stores one chain event.
type EventRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Height     uint64    `gorm:"index:idx_event_height_seq,priority:1"`
	Seq        int       `gorm:"index:idx_event_height_seq,priority:2"`
	Type       string    `gorm:"index"`
	Attributes string
	CreatedAt  time.Time
}

// AutoMigrate performs all schema migrations for the index.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&BlockRecord{}, &EventRecord{})
}
