package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// Store loads the question catalog from PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a catalog store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load reads all active questions and returns an immutable snapshot.
// Option lists are stored as JSONB; rows that fail to decode are skipped
// with a log line rather than failing the whole load.
func (s *Store) Load(ctx context.Context) (*Catalog, error) {
	const query = `
		SELECT id, text, category, type, weight, min_value, max_value, options, created_at
		FROM questions
		WHERE is_active = TRUE
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: query questions: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var (
			q           Question
			minV, maxV  sql.NullInt64
			optionsJSON []byte
		)
		if err := rows.Scan(&q.ID, &q.Text, &q.Category, &q.Type, &q.Weight,
			&minV, &maxV, &optionsJSON, &q.CreatedAt); err != nil {
			return nil, fmt.Errorf("catalog: scan question: %w", err)
		}
		q.MinValue = int(minV.Int64)
		q.MaxValue = int(maxV.Int64)
		if len(optionsJSON) > 0 {
			if err := json.Unmarshal(optionsJSON, &q.Options); err != nil {
				log.Printf("[catalog] skipping %s: bad options json: %v", q.ID, err)
				continue
			}
		}
		q.Active = true
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("catalog: iterate questions: %w", err)
	}

	return New(questions), nil
}

// Cache holds the current catalog snapshot and refreshes it in the
// background so long-running engine processes pick up newly added questions
// without a restart. Readers always see a complete snapshot.
type Cache struct {
	store    *Store
	current  atomic.Pointer[Catalog]
	interval time.Duration
}

// DefaultReloadInterval is how often the cache refreshes from PostgreSQL.
const DefaultReloadInterval = 5 * time.Minute

// NewCache loads an initial snapshot and returns a cache around it.
func NewCache(ctx context.Context, store *Store) (*Cache, error) {
	c := &Cache{store: store, interval: DefaultReloadInterval}
	snapshot, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.current.Store(snapshot)
	return c, nil
}

// Current returns the latest catalog snapshot.
func (c *Cache) Current() *Catalog {
	return c.current.Load()
}

// StartReload runs the periodic refresh loop until ctx is cancelled.
// A failed reload keeps the previous snapshot in place.
func (c *Cache) StartReload(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[catalog] reload loop stopped")
			return
		case <-ticker.C:
			snapshot, err := c.store.Load(ctx)
			if err != nil {
				log.Printf("[catalog] reload failed, keeping previous snapshot: %v", err)
				continue
			}
			c.current.Store(snapshot)
			log.Printf("[catalog] reloaded %d questions", snapshot.Len())
		}
	}
}
