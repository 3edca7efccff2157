// Package indexer keeps a queryable copy of chain events outside the state
// trie.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lanebridge/core/types"
)

const maxQueryLimit = 500

var ErrNotFound = errors.New("indexer: not found")

// Store persists blocks and events through gorm.
type Store struct {
	db *gorm.DB
}

// Open connects to dsn. postgres:// URLs select the postgres driver;
// anything else is treated as a sqlite path or DSN.
func Open(dsn string) (*Store, error) {
	trimmed := strings.TrimSpace(dsn)
	if trimmed == "" {
		return nil, fmt.Errorf("indexer: dsn required")
	}
	var dialector gorm.Dialector
	if strings.HasPrefix(trimmed, "postgres://") || strings.HasPrefix(trimmed, "postgresql://") {
		dialector = postgres.Open(trimmed)
	} else {
		dialector = sqlite.Open(trimmed)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStore wraps an already opened database.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordBlock stores header and its events in one database transaction.
func (s *Store) RecordBlock(ctx context.Context, header *types.BlockHeader, evts []*types.Event) error {
	if header == nil {
		return fmt.Errorf("indexer: header required")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		block := BlockRecord{
			Height:    header.Height,
			StateRoot: fmt.Sprintf("0x%x", header.StateRoot),
			TxCount:   header.TxCount,
			Timestamp: time.Unix(header.Timestamp, 0).UTC(),
		}
		if err := tx.Create(&block).Error; err != nil {
			return err
		}
		if len(evts) == 0 {
			return nil
		}
		rows := make([]EventRecord, 0, len(evts))
		for i, evt := range evts {
			if evt == nil {
				continue
			}
			attrs, err := json.Marshal(evt.Attributes)
			if err != nil {
				return err
			}
			rows = append(rows, EventRecord{
				ID:         uuid.New(),
				Height:     header.Height,
				Seq:        i,
				Type:       evt.Type,
				Attributes: string(attrs),
			})
		}
		return tx.Create(&rows).Error
	})
}

// Filter narrows an event query. Zero values match everything.
type Filter struct {
	Type       string
	FromHeight uint64
	ToHeight   uint64
	Limit      int
}

// IndexedEvent is an event together with its position.
type IndexedEvent struct {
	Height uint64       `json:"height"`
	Seq    int          `json:"seq"`
	Event  *types.Event `json:"event"`
}

// Events returns matching events ordered by height and position.
func (s *Store) Events(ctx context.Context, filter Filter) ([]IndexedEvent, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxQueryLimit {
		limit = maxQueryLimit
	}
	query := s.db.WithContext(ctx).Model(&EventRecord{})
	if t := strings.TrimSpace(filter.Type); t != "" {
		query = query.Where("type = ?", t)
	}
	if filter.FromHeight > 0 {
		query = query.Where("height >= ?", filter.FromHeight)
	}
	if filter.ToHeight > 0 {
		query = query.Where("height <= ?", filter.ToHeight)
	}
	var rows []EventRecord
	if err := query.Order("height asc").Order("seq asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]IndexedEvent, 0, len(rows))
	for _, row := range rows {
		attrs := map[string]string{}
		if row.Attributes != "" {
			if err := json.Unmarshal([]byte(row.Attributes), &attrs); err != nil {
				return nil, err
			}
		}
		out = append(out, IndexedEvent{
			Height: row.Height,
			Seq:    row.Seq,
			Event:  &types.Event{Type: row.Type, Attributes: attrs},
		})
	}
	return out, nil
}

// Block returns the indexed block at height.
func (s *Store) Block(ctx context.Context, height uint64) (*BlockRecord, error) {
	var block BlockRecord
	err := s.db.WithContext(ctx).First(&block, "height = ?", height).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}
