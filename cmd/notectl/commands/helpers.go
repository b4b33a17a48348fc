package commands

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/talknote/talknote/internal/config"
	"github.com/talknote/talknote/internal/database"
	"github.com/talknote/talknote/internal/store"
)

// openStore connects to Redis and loads the note collections. The returned
// cleanup closes the connection.
func openStore(ctx context.Context) (*store.Store, func(), error) {
	cfg, err := config.LoadStorage()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close redis connection: %v\n", err)
		}
	}

	notes := store.New(db, zap.NewNop())
	if err := notes.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to load notes: %w", err)
	}

	return notes, cleanup, nil
}
