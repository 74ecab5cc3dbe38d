// Package catalog defines the personality-quiz question catalog consumed by
// the scoring and recommendation engines. Questions are versioned rows in
// PostgreSQL; the engine works against an in-memory snapshot so that a single
// candidate page is scored against one consistent catalog.
package catalog

import (
	"errors"
	"fmt"
	"time"
)

// Category groups questions for weighting and diversity-aware recommendation.
type Category string

const (
	CategoryPersonality   Category = "personality"
	CategoryCommunication Category = "communication"
	CategoryLifestyle     Category = "lifestyle"
	CategoryValues        Category = "values"
	CategoryRelationship  Category = "relationship"
	CategoryCompatibility Category = "compatibility"
)

// Categories returns all known categories in canonical order. The order is
// load-bearing: explanation text and recommendation tie-breaks iterate it.
func Categories() []Category {
	return []Category{
		CategoryPersonality,
		CategoryCommunication,
		CategoryLifestyle,
		CategoryValues,
		CategoryRelationship,
		CategoryCompatibility,
	}
}

// QuestionType selects the similarity function applied to a pair of answers.
type QuestionType string

const (
	TypeScale    QuestionType = "scale"    // numeric answer within [MinValue, MaxValue]
	TypeMultiple QuestionType = "multiple" // one option token from Options
	TypeText     QuestionType = "text"     // free text
)

// Weight bounds for catalog questions.
const (
	MinWeight = 1
	MaxWeight = 10
)

// ErrInvalidQuestion marks a structurally defective catalog entry. A defective
// question degrades only its own data point: scorers skip it and continue.
var ErrInvalidQuestion = errors.New("catalog: invalid question")

// Question is one immutable-per-version catalog entry.
type Question struct {
	ID        string
	Text      string
	Category  Category
	Type      QuestionType
	Weight    int
	MinValue  int      // scale only
	MaxValue  int      // scale only
	Options   []string // multiple only, ordered option value tokens
	Active    bool
	CreatedAt time.Time
}

// Validate checks the structural invariants the scoring code relies on.
func (q *Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidQuestion)
	}
	if q.Weight < MinWeight || q.Weight > MaxWeight {
		return fmt.Errorf("%w: %s: weight %d out of range", ErrInvalidQuestion, q.ID, q.Weight)
	}
	switch q.Type {
	case TypeScale:
		if q.MaxValue <= q.MinValue {
			return fmt.Errorf("%w: %s: scale bounds [%d,%d]", ErrInvalidQuestion, q.ID, q.MinValue, q.MaxValue)
		}
	case TypeMultiple:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: %s: multiple-choice needs at least 2 options", ErrInvalidQuestion, q.ID)
		}
	case TypeText:
		// no extra structure
	default:
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidQuestion, q.ID, q.Type)
	}
	return nil
}

// Catalog is an immutable snapshot of active questions keyed by ID.
type Catalog struct {
	byID  map[string]Question
	order []string // IDs in insertion order for deterministic iteration
}

// New builds a snapshot from the given questions. Entries are kept even when
// structurally invalid; validation happens at the point of use so a single
// bad row cannot take the whole catalog down.
func New(questions []Question) *Catalog {
	c := &Catalog{byID: make(map[string]Question, len(questions))}
	for _, q := range questions {
		if _, exists := c.byID[q.ID]; !exists {
			c.order = append(c.order, q.ID)
		}
		c.byID[q.ID] = q
	}
	return c
}

// Get returns the question with the given ID.
func (c *Catalog) Get(id string) (Question, bool) {
	q, ok := c.byID[id]
	return q, ok
}

// Len returns the number of questions in the snapshot.
func (c *Catalog) Len() int {
	return len(c.byID)
}

// Questions returns all questions in deterministic (insertion) order.
func (c *Catalog) Questions() []Question {
	out := make([]Question, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
