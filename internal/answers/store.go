// Package answers provides PostgreSQL-backed storage for quiz answers.
// A user holds at most one answer per question: first submission inserts,
// resubmission overwrites in place. Answers accumulate monotonically; deletion
// happens only through account removal, which lives outside the engine.
package answers

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Answer is one (user, question) response. The Answer string's shape depends
// on the question type: a numeric string for scale, an option value token for
// multiple choice, free text otherwise.
type Answer struct {
	UserID     string
	QuestionID string
	Answer     string
	UpdatedAt  time.Time
}

// Store manages quiz answers in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates an answer store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Upsert records an answer, overwriting any previous answer for the same
// (user, question) pair.
func (s *Store) Upsert(ctx context.Context, a Answer) error {
	const query = `
		INSERT INTO user_answers (user_id, question_id, answer, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, question_id)
		DO UPDATE SET answer = EXCLUDED.answer, updated_at = now()`

	if _, err := s.db.ExecContext(ctx, query, a.UserID, a.QuestionID, a.Answer); err != nil {
		return fmt.Errorf("answers: upsert %s/%s: %w", a.UserID, a.QuestionID, err)
	}
	return nil
}

// GetAnswers returns all of a user's answers keyed by question ID.
// A user with no answers yields an empty map, not an error.
func (s *Store) GetAnswers(ctx context.Context, userID string) (map[string]string, error) {
	const query = `
		SELECT question_id, answer
		FROM user_answers
		WHERE user_id = $1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("answers: query for %s: %w", userID, err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var questionID, answer string
		if err := rows.Scan(&questionID, &answer); err != nil {
			return nil, fmt.Errorf("answers: scan for %s: %w", userID, err)
		}
		out[questionID] = answer
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("answers: iterate for %s: %w", userID, err)
	}
	return out, nil
}

// CountAnswers returns how many questions a user has answered.
func (s *Store) CountAnswers(ctx context.Context, userID string) (int, error) {
	const query = `SELECT count(*) FROM user_answers WHERE user_id = $1`

	var n int
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("answers: count for %s: %w", userID, err)
	}
	return n, nil
}
