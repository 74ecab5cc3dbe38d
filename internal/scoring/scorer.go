// Package scoring computes pairwise compatibility between two users' quiz
// answers. The result is derived on demand and never persisted, so it is
// always consistent with the latest answers on both sides.
package scoring

import (
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/soulsync/match-engine/internal/catalog"
)

// Scale bounds of the final compatibility score.
const (
	MinScore = 0.0
	MaxScore = 10.0
)

// Confidence shape constants. Category confidence saturates at 3 shared
// questions; overall confidence blends profile depth (saturating at 10
// answers) with question coverage (saturating at 8 common questions).
const (
	categoryFullConfidenceAt = 3
	depthFullConfidenceAt    = 10
	coverageFullConfidenceAt = 8
	depthBlendWeight         = 0.6
	coverageBlendWeight      = 0.4
)

// Post-hoc bonus caps. Bonuses sit outside the weighted average: they can
// nudge a score, never dominate it, and each is capped independently.
const (
	maxInterestBonus      = 1.0
	perSharedInterest     = 0.2
	commBonusClose        = 0.5 // |delta| <= 2 on the communication question
	commBonusModerate     = 0.2 // |delta| <= 4
	commCloseThreshold    = 2.0
	commModerateThreshold = 4.0
)

// Explanation thresholds.
const (
	strongCategoryScore   = 7.0
	weakCategoryScore     = 4.0
	lowConfidenceCutoff   = 0.3
	explanationLowData    = "Limited data available for an accurate compatibility assessment. Answer more questions to improve accuracy."
	explanationNoAnswers  = "Insufficient data for compatibility calculation"
	explanationNoOverlap  = "No common questions answered"
	explanationAllWeak    = "Low compatibility across most areas. Consider exploring different matches."
)

// Profile is one side of a comparison: the user's answers keyed by question
// ID plus their free-form interests list.
type Profile struct {
	Answers   map[string]string
	Interests []string
}

// CategoryScore is the per-category slice of a compatibility breakdown.
type CategoryScore struct {
	Score         float64 `json:"score"`          // 0-10
	Weight        int     `json:"weight"`         // summed catalog weights of scored questions
	QuestionCount int     `json:"question_count"` // common questions feeding this category
	Confidence    float64 `json:"confidence"`     // 0-1
}

// Result is a full compatibility computation between two users.
type Result struct {
	Score           float64                            `json:"score"`
	Breakdown       map[catalog.Category]CategoryScore `json:"breakdown"`
	Confidence      float64                            `json:"confidence"`
	Explanation     string                             `json:"explanation"`
	CommonQuestions int                                `json:"common_questions"`
	TotalAnswersA   int                                `json:"total_answers_a"`
	TotalAnswersB   int                                `json:"total_answers_b"`
}

// Scorer computes compatibility results against a catalog snapshot.
type Scorer struct {
	// CommQuestionID names the scale question capturing desired
	// communication frequency; empty disables the communication bonus.
	CommQuestionID string

	// Bonuses toggles the post-hoc shared-interest and communication
	// bonuses. The core weighted average is unaffected either way.
	Bonuses bool
}

// Score computes the compatibility of two profiles against the given catalog
// snapshot. It never returns an error: sparse data produces a zero-confidence
// result and malformed catalog entries degrade single questions only.
func (s *Scorer) Score(cat *catalog.Catalog, a, b Profile) Result {
	res := Result{
		Breakdown:     emptyBreakdown(),
		TotalAnswersA: len(a.Answers),
		TotalAnswersB: len(b.Answers),
	}

	if len(a.Answers) == 0 || len(b.Answers) == 0 {
		res.Explanation = explanationNoAnswers
		return res
	}

	common := commonQuestionIDs(a.Answers, b.Answers)
	res.CommonQuestions = len(common)
	if len(common) == 0 {
		res.Explanation = explanationNoOverlap
		return res
	}

	s.fillBreakdown(cat, common, a.Answers, b.Answers, res.Breakdown)

	res.Score = overallScore(res.Breakdown)
	res.Confidence = overallConfidence(len(common), len(a.Answers), len(b.Answers))

	if s.Bonuses {
		res.Score += interestBonus(a.Interests, b.Interests)
		res.Score += s.communicationBonus(a.Answers, b.Answers)
	}
	res.Score = round1(clampScore(res.Score))

	res.Explanation = explain(res.Breakdown, res.Confidence)
	return res
}

// commonQuestionIDs returns the sorted intersection of answered question IDs.
// Sorting keeps per-question skip logging and accumulation order stable.
func commonQuestionIDs(a, b map[string]string) []string {
	ids := make([]string, 0, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func emptyBreakdown() map[catalog.Category]CategoryScore {
	breakdown := make(map[catalog.Category]CategoryScore, len(catalog.Categories()))
	for _, c := range catalog.Categories() {
		breakdown[c] = CategoryScore{}
	}
	return breakdown
}

// fillBreakdown partitions the common questions by category and computes the
// weighted-average similarity per category, scaled to 0-10. Questions missing
// from the catalog or failing similarity are skipped with a log line; an
// absent or broken answer is not evidence of incompatibility.
func (s *Scorer) fillBreakdown(cat *catalog.Catalog, common []string, a, b map[string]string, breakdown map[catalog.Category]CategoryScore) {
	type acc struct {
		weightedSum float64
		totalWeight int
		count       int
	}
	byCategory := make(map[catalog.Category]*acc)

	for _, id := range common {
		q, ok := cat.Get(id)
		if !ok {
			log.Printf("[scorer] skipping %s: not in catalog", id)
			continue
		}
		sim, err := Similarity(q, a[id], b[id])
		if err != nil {
			log.Printf("[scorer] skipping %s: %v", id, err)
			continue
		}

		entry := byCategory[q.Category]
		if entry == nil {
			entry = &acc{}
			byCategory[q.Category] = entry
		}
		entry.weightedSum += sim * float64(q.Weight)
		entry.totalWeight += q.Weight
		entry.count++
	}

	for category, entry := range byCategory {
		if entry.totalWeight == 0 {
			continue
		}
		score := entry.weightedSum / float64(entry.totalWeight) * MaxScore
		confidence := float64(entry.count) / categoryFullConfidenceAt
		if confidence > 1 {
			confidence = 1
		}
		breakdown[category] = CategoryScore{
			Score:         round1(score),
			Weight:        entry.totalWeight,
			QuestionCount: entry.count,
			Confidence:    round2(confidence),
		}
	}
}

// overallScore is the confidence-weighted average of category scores.
// Categories with no shared questions have zero weight and confidence, so
// they contribute nothing to either side of the division.
func overallScore(breakdown map[catalog.Category]CategoryScore) float64 {
	var weightedSum, totalWeight float64
	for _, cs := range breakdown {
		adjusted := float64(cs.Weight) * cs.Confidence
		weightedSum += cs.Score * adjusted
		totalWeight += adjusted
	}
	if totalWeight == 0 {
		return 0
	}
	return weightedSum / totalWeight
}

// overallConfidence blends profile depth with question coverage: a user who
// answered 50 questions disjoint from another user's 50 is still weak signal.
func overallConfidence(common, answersA, answersB int) float64 {
	minAnswers := answersA
	if answersB < minAnswers {
		minAnswers = answersB
	}

	depth := float64(minAnswers) / depthFullConfidenceAt
	if depth > 1 {
		depth = 1
	}
	coverage := float64(common) / coverageFullConfidenceAt
	if coverage > 1 {
		coverage = 1
	}

	return round2(depth*depthBlendWeight + coverage*coverageBlendWeight)
}

// interestBonus rewards overlap in the free-form interests lists, capped at
// maxInterestBonus. Comparison is case-insensitive and symmetric.
func interestBonus(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setB := make(map[string]bool, len(b))
	for _, interest := range b {
		setB[strings.ToLower(strings.TrimSpace(interest))] = true
	}

	seen := make(map[string]bool, len(a))
	shared := 0
	for _, interest := range a {
		key := strings.ToLower(strings.TrimSpace(interest))
		if setB[key] && !seen[key] {
			seen[key] = true
			shared++
		}
	}

	bonus := float64(shared) * perSharedInterest
	if bonus > maxInterestBonus {
		bonus = maxInterestBonus
	}
	return bonus
}

// communicationBonus rewards numerically close answers on the designated
// communication-frequency question.
func (s *Scorer) communicationBonus(a, b map[string]string) float64 {
	if s.CommQuestionID == "" {
		return 0
	}
	rawA, okA := a[s.CommQuestionID]
	rawB, okB := b[s.CommQuestionID]
	if !okA || !okB {
		return 0
	}
	va, errA := strconv.ParseFloat(strings.TrimSpace(rawA), 64)
	vb, errB := strconv.ParseFloat(strings.TrimSpace(rawB), 64)
	if errA != nil || errB != nil {
		return 0
	}

	delta := math.Abs(va - vb)
	switch {
	case delta <= commCloseThreshold:
		return commBonusClose
	case delta <= commModerateThreshold:
		return commBonusModerate
	default:
		return 0
	}
}

// explain builds a short natural-language summary by thresholding category
// scores. Purely descriptive: it has no effect on the numeric score.
func explain(breakdown map[catalog.Category]CategoryScore, confidence float64) string {
	if confidence < lowConfidenceCutoff {
		return explanationLowData
	}

	var strong, weak []string
	for _, category := range catalog.Categories() {
		cs := breakdown[category]
		if cs.QuestionCount == 0 {
			continue
		}
		switch {
		case cs.Score >= strongCategoryScore:
			strong = append(strong, string(category))
		case cs.Score < weakCategoryScore:
			weak = append(weak, string(category))
		}
	}

	switch {
	case len(strong) == 0:
		return explanationAllWeak
	case len(strong) >= 3:
		return fmt.Sprintf("High compatibility in %s and %s. Strong potential for a meaningful connection.",
			strong[0], strong[1])
	case len(weak) > 0:
		return fmt.Sprintf("Good compatibility in %s. Areas for growth include %s.", strong[0], weak[0])
	default:
		return fmt.Sprintf("Good compatibility in %s. Overall promising match.", strong[0])
	}
}

func clampScore(v float64) float64 {
	if v < MinScore {
		return MinScore
	}
	if v > MaxScore {
		return MaxScore
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
