// Package directory provides read-only access to user records for candidate
// sourcing. The engine never mutates users; demographic attributes are read
// for filtering and the interests list feeds the shared-interest bonus.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// LookingForEveryone is the preference value that matches any gender.
// An empty preference is treated the same way.
const LookingForEveryone = "everyone"

// ErrNotFound is returned when a user ID does not exist.
var ErrNotFound = errors.New("directory: user not found")

// User is the demographic projection the engine reads.
type User struct {
	ID         string
	Name       string
	Age        int
	Gender     string
	LookingFor string
	Interests  []string
	Active     bool
	CreatedAt  time.Time
}

// WantsGender reports whether this user's stated preference admits the other
// user. A missing preference or "everyone" admits anyone; a specific
// preference only rejects when the other user's gender is known and differs.
func (u *User) WantsGender(other *User) bool {
	if u.LookingFor == "" || u.LookingFor == LookingForEveryone {
		return true
	}
	if other.Gender == "" {
		return true
	}
	return other.Gender == u.LookingFor
}

// Filter narrows candidate sourcing. Zero values mean "no constraint".
type Filter struct {
	Gender string // candidate gender must equal this when set
	MinAge int
	MaxAge int
}

// Store reads user records from PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a user directory backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetUser returns a single user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	const query = `
		SELECT id, name, age, gender, looking_for, interests, is_active, created_at
		FROM users
		WHERE id = $1`

	u, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("directory: get user %s: %w", id, err)
	}
	return u, nil
}

// FindActiveUsers returns up to limit active users, newest first, excluding
// the given user ID and applying the demographic filter. Gender and age
// constraints are pushed into SQL so the oversampled pool stays small.
func (s *Store) FindActiveUsers(ctx context.Context, excludeID string, f Filter, limit int) ([]*User, error) {
	query := `
		SELECT id, name, age, gender, looking_for, interests, is_active, created_at
		FROM users
		WHERE is_active = TRUE AND id <> $1`
	args := []interface{}{excludeID}

	if f.Gender != "" {
		args = append(args, f.Gender)
		query += fmt.Sprintf(" AND gender = $%d", len(args))
	}
	if f.MinAge > 0 {
		args = append(args, f.MinAge)
		query += fmt.Sprintf(" AND age >= $%d", len(args))
	}
	if f.MaxAge > 0 {
		args = append(args, f.MaxAge)
		query += fmt.Sprintf(" AND age <= $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("directory: find active users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("directory: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("directory: iterate users: %w", err)
	}
	return users, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row scanner) (*User, error) {
	var (
		u          User
		age        sql.NullInt64
		gender     sql.NullString
		lookingFor sql.NullString
	)
	if err := row.Scan(&u.ID, &u.Name, &age, &gender, &lookingFor,
		pq.Array(&u.Interests), &u.Active, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Age = int(age.Int64)
	u.Gender = gender.String
	u.LookingFor = lookingFor.String
	return &u, nil
}
