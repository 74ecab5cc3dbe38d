// Package recommend selects the next batch of quiz questions for a user,
// balancing category diversity against raw question weight so that future
// compatibility scores gain confidence as fast as possible. Selection is
// stateless and deterministic: the same answered-set always yields the same
// recommendation.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/soulsync/match-engine/internal/catalog"
)

const (
	// essentialAnswerThreshold: below this many total answers the essential
	// phase runs first, unlocking matching at all.
	essentialAnswerThreshold = 5

	// essentialMinWeight and essentialMax bound the essential phase: up to
	// 3 unanswered questions of weight 8 or higher.
	essentialMinWeight = 8
	essentialMax       = 3

	// completionScoreCap caps the per-category completion score.
	completionScoreCap = 10
)

// ErrUpstream marks an answer-store failure.
var ErrUpstream = errors.New("recommend: upstream unavailable")

// AnswerSource supplies a user's answers keyed by question ID.
type AnswerSource interface {
	GetAnswers(ctx context.Context, userID string) (map[string]string, error)
}

// CatalogSource supplies the current question catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// CategoryStats summarizes a user's progress within one category.
type CategoryStats struct {
	Count           int     `json:"count"`
	TotalWeight     int     `json:"total_weight"`
	AverageWeight   float64 `json:"average_weight"`
	CompletionScore int     `json:"completion_score"` // answers in category, capped at 10
}

// Result is a recommendation batch plus advisory analytics.
type Result struct {
	Questions []catalog.Question `json:"questions"`
	Analytics Analytics          `json:"analytics"`
}

// Recommender selects personalized next questions.
type Recommender struct {
	answers AnswerSource
	catalog CatalogSource
}

// New creates a Recommender.
func New(answers AnswerSource, cat CatalogSource) *Recommender {
	return &Recommender{answers: answers, catalog: cat}
}

// NextQuestions returns up to count unanswered questions for the user,
// chosen in three phases: essential high-weight questions for new profiles,
// one question per under-represented category, then a global weight-ordered
// fill.
func (r *Recommender) NextQuestions(ctx context.Context, userID string, count int) (*Result, error) {
	if count <= 0 {
		return nil, fmt.Errorf("recommend: count must be positive, got %d", count)
	}

	answered, err := r.answers.GetAnswers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: load answers: %v", ErrUpstream, err)
	}

	cat := r.catalog.Current()
	stats := categoryStats(cat, answered)
	available := unansweredQuestions(cat, answered)

	selected := selectWithDiversity(available, stats, len(answered), count)

	return &Result{
		Questions: selected,
		Analytics: buildAnalytics(len(answered), len(selected), stats),
	}, nil
}

// unansweredQuestions returns valid, active, unanswered questions sorted by
// weight descending with question ID as the deterministic tie-break.
func unansweredQuestions(cat *catalog.Catalog, answered map[string]string) []catalog.Question {
	var out []catalog.Question
	for _, q := range cat.Questions() {
		if _, done := answered[q.ID]; done {
			continue
		}
		if err := q.Validate(); err != nil {
			continue // defective rows never get recommended
		}
		out = append(out, q)
	}
	sortByWeight(out)
	return out
}

func sortByWeight(questions []catalog.Question) {
	sort.Slice(questions, func(i, j int) bool {
		if questions[i].Weight != questions[j].Weight {
			return questions[i].Weight > questions[j].Weight
		}
		return questions[i].ID < questions[j].ID
	})
}

// categoryStats computes the user's per-category answer distribution.
func categoryStats(cat *catalog.Catalog, answered map[string]string) map[catalog.Category]CategoryStats {
	stats := make(map[catalog.Category]CategoryStats, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		stats[c] = CategoryStats{}
	}

	for id := range answered {
		q, ok := cat.Get(id)
		if !ok {
			continue
		}
		s := stats[q.Category]
		s.Count++
		s.TotalWeight += q.Weight
		stats[q.Category] = s
	}

	for c, s := range stats {
		if s.Count > 0 {
			s.AverageWeight = float64(s.TotalWeight) / float64(s.Count)
		}
		s.CompletionScore = s.Count
		if s.CompletionScore > completionScoreCap {
			s.CompletionScore = completionScoreCap
		}
		stats[c] = s
	}
	return stats
}

// selectWithDiversity runs the three ordered selection phases. available
// must already be sorted by weight descending, ID ascending.
func selectWithDiversity(available []catalog.Question, stats map[catalog.Category]CategoryStats, answeredCount, limit int) []catalog.Question {
	var selected []catalog.Question
	taken := make(map[string]bool)

	take := func(q catalog.Question) {
		selected = append(selected, q)
		taken[q.ID] = true
	}

	// Phase 1: essential high-weight questions for brand-new profiles.
	if answeredCount < essentialAnswerThreshold {
		for _, q := range available {
			if len(selected) >= essentialMax || len(selected) >= limit {
				break
			}
			if q.Weight >= essentialMinWeight {
				take(q)
			}
		}
	}

	// Phase 2: category diversity. Categories are visited from least to
	// most complete, cycling until slots run out or no category yields.
	// Questions already taken by the essential phase count toward a
	// category's coverage so a fresh profile still spans all categories.
	if len(selected) < limit {
		byCategory := make(map[catalog.Category][]catalog.Question)
		for _, q := range available {
			byCategory[q.Category] = append(byCategory[q.Category], q)
		}

		coverage := make(map[catalog.Category]int, len(catalog.Categories()))
		for _, c := range catalog.Categories() {
			coverage[c] = stats[c].CompletionScore
		}
		for _, q := range selected {
			coverage[q.Category]++
		}

		order := append([]catalog.Category(nil), catalog.Categories()...)
		sort.SliceStable(order, func(i, j int) bool {
			return coverage[order[i]] < coverage[order[j]]
		})

		for len(selected) < limit {
			progressed := false
			for _, c := range order {
				if len(selected) >= limit {
					break
				}
				for _, q := range byCategory[c] {
					if taken[q.ID] {
						continue
					}
					take(q)
					progressed = true
					break
				}
			}
			if !progressed {
				break
			}
		}
	}

	// Phase 3: fill remaining slots with the globally heaviest questions.
	for _, q := range available {
		if len(selected) >= limit {
			break
		}
		if !taken[q.ID] {
			take(q)
		}
	}

	return selected
}
