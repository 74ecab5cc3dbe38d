// Package selector turns a pool of active users into a ranked, paginated
// list of match candidates. It is a pure read path: it never creates or
// mutates match records, and every invocation recomputes scores from the
// latest answers.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/soulsync/match-engine/internal/catalog"
	"github.com/soulsync/match-engine/internal/directory"
	"github.com/soulsync/match-engine/internal/metrics"
	"github.com/soulsync/match-engine/internal/scoring"
)

const (
	// MinAnswersForMatching gates scoring entirely: below this the user is
	// steered to answer more questions instead of receiving weak matches.
	MinAnswersForMatching = 3

	// MinConfidence drops low-signal pairs from the results. A candidate
	// the engine knows nothing about is worse than no recommendation.
	MinConfidence = 0.2

	// oversampleFactor bounds the candidate pool fetch relative to the
	// requested page, leaving room for post-filtering and confidence drops.
	oversampleFactor = 3

	// DefaultWorkers is the scoring concurrency per request. Pairwise
	// scoring is independent, so the pool is the dominant cost lever.
	DefaultWorkers = 8
)

// ErrUpstream marks a collaborator (directory, answers, ledger) failure.
// The selector does not retry; retries belong to the caller.
var ErrUpstream = errors.New("selector: upstream unavailable")

// AnswerSource supplies a user's answers keyed by question ID.
type AnswerSource interface {
	GetAnswers(ctx context.Context, userID string) (map[string]string, error)
}

// UserSource supplies user records for candidate sourcing.
type UserSource interface {
	GetUser(ctx context.Context, id string) (*directory.User, error)
	FindActiveUsers(ctx context.Context, excludeID string, f directory.Filter, limit int) ([]*directory.User, error)
}

// PartnerSource supplies the set of users already linked by a match record.
type PartnerSource interface {
	PartnersOf(ctx context.Context, userID string) (map[string]bool, error)
}

// CatalogSource supplies the current question catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// Filters narrows a candidate search. Zero values mean "no constraint".
type Filters struct {
	MinAge int
	MaxAge int
}

// Candidate is one ranked result: a user annotated with their
// compatibility against the requester.
type Candidate struct {
	User          *directory.User
	Compatibility scoring.Result
}

// Page is one page of ranked candidates.
type Page struct {
	Candidates    []Candidate
	HasMore       bool
	TotalAnalyzed int    // candidates pulled and scored before ranking
	Message       string // set when matching is gated, empty otherwise
}

// Selector wires the collaborators together.
type Selector struct {
	users    UserSource
	answers  AnswerSource
	partners PartnerSource
	catalog  CatalogSource
	scorer   *scoring.Scorer
	workers  int
}

// New creates a Selector with the default worker count.
func New(users UserSource, answers AnswerSource, partners PartnerSource, cat CatalogSource, scorer *scoring.Scorer) *Selector {
	return &Selector{
		users:    users,
		answers:  answers,
		partners: partners,
		catalog:  cat,
		scorer:   scorer,
		workers:  DefaultWorkers,
	}
}

// FindCandidates returns the ranked candidate page for userID.
func (s *Selector) FindCandidates(ctx context.Context, userID string, limit, offset int, f Filters) (*Page, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("selector: limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("selector: offset must be non-negative, got %d", offset)
	}

	requester, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load user: %v", ErrUpstream, err)
	}

	requesterAnswers, err := s.answers.GetAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load answers: %v", ErrUpstream, err)
	}
	if len(requesterAnswers) < MinAnswersForMatching {
		return &Page{
			Message: fmt.Sprintf("Answer at least %d questions to unlock matching", MinAnswersForMatching),
		}, nil
	}

	excluded, err := s.partners.PartnersOf(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load match partners: %v", ErrUpstream, err)
	}

	pool, err := s.fetchPool(ctx, requester, limit, offset, f)
	if err != nil {
		return nil, err
	}

	eligible := make([]*directory.User, 0, len(pool))
	for _, cand := range pool {
		if excluded[cand.ID] {
			continue
		}
		// Both directions must hold; a one-sided match is not surfaced.
		if !requester.WantsGender(cand) || !cand.WantsGender(requester) {
			continue
		}
		eligible = append(eligible, cand)
	}

	ranked, err := s.scorePool(ctx, requester, requesterAnswers, eligible)
	if err != nil {
		return nil, err
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Compatibility.Score != b.Compatibility.Score {
			return a.Compatibility.Score > b.Compatibility.Score
		}
		// Freshness tie-break: newer profiles first, then ID for determinism.
		if !a.User.CreatedAt.Equal(b.User.CreatedAt) {
			return a.User.CreatedAt.After(b.User.CreatedAt)
		}
		return a.User.ID < b.User.ID
	})

	page := &Page{TotalAnalyzed: len(eligible)}
	if offset < len(ranked) {
		end := offset + limit
		if end > len(ranked) {
			end = len(ranked)
		}
		page.Candidates = ranked[offset:end]
		page.HasMore = len(ranked) > end
	}
	return page, nil
}

// fetchPool pulls an oversampled candidate pool from the directory, pushing
// the requester's gender preference and age filters into the query.
func (s *Selector) fetchPool(ctx context.Context, requester *directory.User, limit, offset int, f Filters) ([]*directory.User, error) {
	filter := directory.Filter{MinAge: f.MinAge, MaxAge: f.MaxAge}
	if requester.LookingFor != "" && requester.LookingFor != directory.LookingForEveryone {
		filter.Gender = requester.LookingFor
	}

	poolLimit := (limit + offset) * oversampleFactor
	pool, err := s.users.FindActiveUsers(ctx, requester.ID, filter, poolLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: find candidates: %v", ErrUpstream, err)
	}
	return pool, nil
}

// scorePool scores candidates concurrently with a bounded worker pool.
// A failed answer fetch degrades that single candidate; cancellation aborts
// the whole loop.
func (s *Selector) scorePool(ctx context.Context, requester *directory.User, requesterAnswers map[string]string, pool []*directory.User) ([]Candidate, error) {
	requesterProfile := scoring.Profile{Answers: requesterAnswers, Interests: requester.Interests}
	cat := s.catalog.Current()

	results := make([]*Candidate, len(pool))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, cand := range pool {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, fmt.Errorf("selector: scoring aborted: %w", ctx.Err())
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, cand *directory.User) {
			defer wg.Done()
			defer func() { <-sem }()

			candAnswers, err := s.answers.GetAnswers(ctx, cand.ID)
			if err != nil {
				log.Printf("[selector] skipping candidate %s: %v", cand.ID, err)
				return
			}

			res := s.scorer.Score(cat, requesterProfile, scoring.Profile{
				Answers:   candAnswers,
				Interests: cand.Interests,
			})
			metrics.CandidatesScored.Inc()

			if res.Score <= 0 || res.Confidence < MinConfidence {
				return
			}
			results[i] = &Candidate{User: cand, Compatibility: res}
		}(i, cand)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("selector: scoring aborted: %w", err)
	}

	ranked := make([]Candidate, 0, len(results))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, *r)
		}
	}
	return ranked, nil
}
