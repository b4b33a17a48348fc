// Package database persists the note collections and the theme preference in
// a Redis key-value store. Each collection lives under its own key and is
// written wholesale on every mutation; the keys are read once at process
// start.
package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/talknote/talknote/internal/models"
	"github.com/talknote/talknote/internal/store"
)

// DB is the durable collaborator behind the note store
var _ store.Persister = (*DB)(nil)

const (
	activeKey = "talknote:notes"
	trashKey  = "talknote:notes:deleted"
	themeKey  = "talknote:theme"
)

// DB wraps the Redis client used for durable storage
type DB struct {
	client *redis.Client
}

// New connects to Redis using a redis:// URL
func New(redisURL string) (*DB, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &DB{client: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client. Used by callers that share one
// connection between persistence and rate limiting.
func NewFromClient(client *redis.Client) *DB {
	return &DB{client: client}
}

// Client exposes the underlying Redis client
func (d *DB) Client() *redis.Client {
	return d.client
}

// Ping verifies the connection
func (d *DB) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}

// Close closes the underlying connection
func (d *DB) Close() error {
	return d.client.Close()
}

// SaveActive writes the active collection wholesale
func (d *DB) SaveActive(ctx context.Context, notes []*models.Note) error {
	return d.saveNotes(ctx, activeKey, notes)
}

// SaveTrash writes the trash collection wholesale
func (d *DB) SaveTrash(ctx context.Context, notes []*models.Note) error {
	return d.saveNotes(ctx, trashKey, notes)
}

// LoadActive reads the active collection. A missing key yields an empty
// collection.
func (d *DB) LoadActive(ctx context.Context) ([]*models.Note, error) {
	return d.loadNotes(ctx, activeKey)
}

// LoadTrash reads the trash collection
func (d *DB) LoadTrash(ctx context.Context) ([]*models.Note, error) {
	return d.loadNotes(ctx, trashKey)
}

func (d *DB) saveNotes(ctx context.Context, key string, notes []*models.Note) error {
	if notes == nil {
		notes = []*models.Note{}
	}
	data, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to marshal notes: %w", err)
	}
	if err := d.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (d *DB) loadNotes(ctx context.Context, key string) ([]*models.Note, error) {
	data, err := d.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	var notes []*models.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return notes, nil
}

// LoadTheme reads the persisted theme preference, defaulting to light when
// no preference has been stored yet.
func (d *DB) LoadTheme(ctx context.Context) (models.Theme, error) {
	value, err := d.client.Get(ctx, themeKey).Result()
	if err == redis.Nil {
		return models.ThemeLight, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", themeKey, err)
	}
	return models.Theme(value), nil
}

// SaveTheme persists the theme preference
func (d *DB) SaveTheme(ctx context.Context, theme models.Theme) error {
	if err := d.client.Set(ctx, themeKey, string(theme), 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", themeKey, err)
	}
	return nil
}
