// Package ledger manages match records: who has already been surfaced to
// whom, and where that stands (pending, accepted, rejected). The candidate
// selector only reads the ledger, to build its exclusion set; writes happen
// when the surrounding application records a swipe or a decision.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Match status values.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
)

// ErrDuplicate is returned when a match between the same pair already exists
// in either direction.
var ErrDuplicate = errors.New("ledger: match already exists")

// Match is one directed match record.
type Match struct {
	ID          string
	InitiatorID string
	ReceiverID  string
	Status      string
	Score       float64 // compatibility score at creation time, advisory only
	CreatedAt   time.Time
}

// Store manages match records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a match ledger backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// PartnersOf returns the set of user IDs already linked to userID by a match
// record in any status. Accepted, rejected, and pending matches all suppress
// re-surfacing.
func (s *Store) PartnersOf(ctx context.Context, userID string) (map[string]bool, error) {
	const query = `
		SELECT initiator_id, receiver_id
		FROM matches
		WHERE initiator_id = $1 OR receiver_id = $1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query partners of %s: %w", userID, err)
	}
	defer rows.Close()

	partners := make(map[string]bool)
	for rows.Next() {
		var initiator, receiver string
		if err := rows.Scan(&initiator, &receiver); err != nil {
			return nil, fmt.Errorf("ledger: scan match: %w", err)
		}
		if initiator == userID {
			partners[receiver] = true
		} else {
			partners[initiator] = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate matches: %w", err)
	}
	return partners, nil
}

// Create records a new pending match. The pair is checked in both directions
// so a reversed duplicate is rejected as well.
func (s *Store) Create(ctx context.Context, initiatorID, receiverID string, score float64) (*Match, error) {
	if initiatorID == receiverID {
		return nil, fmt.Errorf("ledger: cannot match %s with self", initiatorID)
	}

	const existsQuery = `
		SELECT count(*) FROM matches
		WHERE (initiator_id = $1 AND receiver_id = $2)
		   OR (initiator_id = $2 AND receiver_id = $1)`

	var n int
	if err := s.db.QueryRowContext(ctx, existsQuery, initiatorID, receiverID).Scan(&n); err != nil {
		return nil, fmt.Errorf("ledger: check existing match: %w", err)
	}
	if n > 0 {
		return nil, ErrDuplicate
	}

	m := &Match{
		ID:          uuid.New().String(),
		InitiatorID: initiatorID,
		ReceiverID:  receiverID,
		Status:      StatusPending,
		Score:       score,
		CreatedAt:   time.Now(),
	}

	const insertQuery = `
		INSERT INTO matches (id, initiator_id, receiver_id, status, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	if _, err := s.db.ExecContext(ctx, insertQuery,
		m.ID, m.InitiatorID, m.ReceiverID, m.Status, m.Score, m.CreatedAt); err != nil {
		return nil, fmt.Errorf("ledger: insert match: %w", err)
	}
	return m, nil
}

// UpdateStatus moves a match to accepted or rejected. Only the receiver of a
// pending match may decide it.
func (s *Store) UpdateStatus(ctx context.Context, matchID, receiverID, status string) error {
	if status != StatusAccepted && status != StatusRejected {
		return fmt.Errorf("ledger: invalid status %q", status)
	}

	const query = `
		UPDATE matches
		SET status = $1
		WHERE id = $2 AND receiver_id = $3 AND status = $4`

	res, err := s.db.ExecContext(ctx, query, status, matchID, receiverID, StatusPending)
	if err != nil {
		return fmt.Errorf("ledger: update match %s: %w", matchID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: update match %s: %w", matchID, err)
	}
	if affected == 0 {
		return fmt.Errorf("ledger: no pending match %s for receiver %s", matchID, receiverID)
	}
	return nil
}
