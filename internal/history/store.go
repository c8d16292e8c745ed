package history

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/OSchengdu/swissK-agent/internal/config"
	"github.com/OSchengdu/swissK-agent/internal/task"
)

// Entry is one completed exchange.
type Entry struct {
	Session   string
	Input     string
	Output    string
	Mode      task.Mode
	CreatedAt time.Time
}

// Store persists exchanges per session.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to n entries of session, oldest first.
	Recent(ctx context.Context, session string, n int) ([]Entry, error)
	Close() error
}

// DBFile is the sqlite database name inside the session directory.
const DBFile = "swissk.db"

// Open builds the store selected by cfg.Store.
func Open(cfg config.SessionConfig) (Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", "jsonl":
		return NewJSONLStore(dir), nil
	case "sqlite":
		return NewSQLiteStore(filepath.Join(dir, DBFile))
	case "none":
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("unknown history store %q", cfg.Store)
	}
}

// NopStore discards writes and returns nothing.
type NopStore struct{}

func (NopStore) Append(context.Context, Entry) error { return nil }

func (NopStore) Recent(context.Context, string, int) ([]Entry, error) { return nil, nil }

func (NopStore) Close() error { return nil }
