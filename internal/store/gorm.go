package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Node is one stored record.
type Node struct {
	Collection string    `gorm:"primaryKey;size:64"`
	Key        string    `gorm:"primaryKey;size:64;column:record_key"`
	Value      string    `gorm:"type:text;not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

func (Node) TableName() string { return "nodes" }

// GormStore keeps records in the nodes table. Change notifications are
// fanned out in-process, so every writer must go through the same
// GormStore value.
type GormStore struct {
	db     *gorm.DB
	hub    *hub
	log    *slog.Logger
	closed atomic.Bool
}

func NewGormStore(db *gorm.DB, log *slog.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&Node{}); err != nil {
		return nil, fmt.Errorf("failed to migrate nodes table: %w", err)
	}
	return &GormStore{db: db, hub: newHub(), log: log}, nil
}

func (s *GormStore) Subscribe(ctx context.Context, path string, fn func(Snapshot)) (Subscription, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	p, err := ParsePath(path)
	if err != nil {
		return nil, err
	}
	sub := startSubscription(ctx, p, func(ctx context.Context) (Snapshot, error) {
		return s.read(ctx, p)
	}, fn, s.hub.remove, s.log)
	s.hub.add(sub)
	return sub, nil
}

func (s *GormStore) Read(ctx context.Context, path string) (Snapshot, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Snapshot{}, err
	}
	return s.read(ctx, p)
}

func (s *GormStore) read(ctx context.Context, p Path) (Snapshot, error) {
	snap := Snapshot{Path: p.String()}

	if !p.IsCollection() {
		var node Node
		err := s.db.WithContext(ctx).Where("collection = ? AND record_key = ?", p.Collection, p.Key).First(&node).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return snap, nil
		}
		if err != nil {
			return snap, fmt.Errorf("failed to read %s: %w", p, err)
		}
		snap.Exists = true
		snap.Value = []byte(node.Value)
		return snap, nil
	}

	var nodes []Node
	if err := s.db.WithContext(ctx).Where("collection = ?", p.Collection).Order("record_key").Find(&nodes).Error; err != nil {
		return snap, fmt.Errorf("failed to read %s: %w", p, err)
	}
	snap.Exists = len(nodes) > 0
	snap.Children = make([]Child, 0, len(nodes))
	for _, node := range nodes {
		snap.Children = append(snap.Children, Child{Key: node.Key, Value: []byte(node.Value)})
	}
	return snap, nil
}

func (s *GormStore) Write(ctx context.Context, path string, value interface{}) error {
	p, err := parseRecordPath(path)
	if err != nil {
		return err
	}
	data, err := marshalValue(value)
	if err != nil {
		return err
	}

	node := Node{Collection: p.Collection, Key: p.Key, Value: string(data)}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "record_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&node).Error
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}

	s.hub.publish(p.Collection)
	return nil
}

func (s *GormStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	p, err := parseRecordPath(path)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var node Node
		err := tx.Where("collection = ? AND record_key = ?", p.Collection, p.Key).First(&node).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		exists := err == nil

		merged, err := mergeFields([]byte(node.Value), fields)
		if err != nil {
			return err
		}

		if !exists {
			return tx.Create(&Node{Collection: p.Collection, Key: p.Key, Value: string(merged)}).Error
		}
		return tx.Model(&Node{}).
			Where("collection = ? AND record_key = ?", p.Collection, p.Key).
			Updates(map[string]interface{}{"value": string(merged), "updated_at": time.Now()}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", p, err)
	}

	s.hub.publish(p.Collection)
	return nil
}

func (s *GormStore) Append(ctx context.Context, path string) (string, error) {
	p, err := parseCollectionPath(path)
	if err != nil {
		return "", err
	}
	return p.Child(NewKey()).String(), nil
}

func (s *GormStore) Delete(ctx context.Context, path string) error {
	p, err := ParsePath(path)
	if err != nil {
		return err
	}

	query := s.db.WithContext(ctx).Where("collection = ?", p.Collection)
	if !p.IsCollection() {
		query = query.Where("record_key = ?", p.Key)
	}
	if err := query.Delete(&Node{}).Error; err != nil {
		return fmt.Errorf("failed to delete %s: %w", p, err)
	}

	s.hub.publish(p.Collection)
	return nil
}

func (s *GormStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close stops every live subscription. The underlying database is owned
// by the caller.
func (s *GormStore) Close() error {
	s.closed.Store(true)
	s.hub.stopAll()
	return nil
}
