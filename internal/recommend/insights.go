package recommend

import (
	"fmt"
	"math"

	"github.com/soulsync/match-engine/internal/catalog"
)

// Recommendation priorities and types surfaced in analytics.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"

	TypeEssential   = "essential"
	TypeImprovement = "improvement"
	TypeDiversity   = "diversity"
	TypeMilestone   = "milestone"
)

// Improvement-potential shape: 5% per additional question, decaying linearly
// past 10 existing answers down to a 0.3 floor, +10 when the batch crosses a
// multiple-of-5 milestone, capped at 50.
const (
	improvementPerQuestion  = 5
	decayStartAnswers       = 10
	decayPerAnswer          = 0.1
	decayFloor              = 0.3
	milestoneStep           = 5
	milestoneBonus          = 10
	improvementCap          = 50
	diversityCompletionsMin = 3 // categories below this draw a diversity nudge
)

// Recommendation is one advisory nudge returned with a question batch.
type Recommendation struct {
	Type            string           `json:"type"`
	Priority        string           `json:"priority"`
	Message         string           `json:"message"`
	Category        catalog.Category `json:"category,omitempty"`
	QuestionsNeeded int              `json:"questions_needed,omitempty"`
}

// Analytics is advisory metadata about a user's quiz progress. None of it
// alters selection order.
type Analytics struct {
	TotalAnswered        int                                `json:"total_answered"`
	CategoryStats        map[catalog.Category]CategoryStats `json:"category_stats"`
	ImprovementPotential int                                `json:"improvement_potential"`
	MatchingReadiness    int                                `json:"matching_readiness"`
	ProfileStrength      string                             `json:"profile_strength"`
	Recommendations      []Recommendation                   `json:"recommendations"`
}

func buildAnalytics(answered, batchSize int, stats map[catalog.Category]CategoryStats) Analytics {
	return Analytics{
		TotalAnswered:        answered,
		CategoryStats:        stats,
		ImprovementPotential: ImprovementPotential(answered, batchSize),
		MatchingReadiness:    MatchingReadiness(answered),
		ProfileStrength:      ProfileStrength(answered),
		Recommendations:      recommendations(answered, stats),
	}
}

// ImprovementPotential estimates the percentage improvement in matching
// quality from answering additional questions.
func ImprovementPotential(answered, additional int) int {
	improvement := float64(additional * improvementPerQuestion)

	if answered > decayStartAnswers {
		factor := 1 - float64(answered-decayStartAnswers)*decayPerAnswer
		if factor < decayFloor {
			factor = decayFloor
		}
		improvement *= factor
	}

	currentMilestone := answered / milestoneStep * milestoneStep
	futureMilestone := (answered + additional) / milestoneStep * milestoneStep
	if futureMilestone > currentMilestone {
		improvement += milestoneBonus
	}

	rounded := int(math.Round(improvement))
	if rounded > improvementCap {
		return improvementCap
	}
	return rounded
}

// MatchingReadiness maps answer count onto a 0-100 readiness percentage:
// 0-25 while basic matching is locked, 25-75 as accuracy improves, 75-100
// for deep profiles.
func MatchingReadiness(answered int) int {
	switch {
	case answered < 5:
		return int(math.Round(float64(answered) / 5 * 25))
	case answered < 15:
		return 25 + int(math.Round(float64(answered-5)/10*50))
	default:
		extra := (answered - 15) * 2
		if extra > 25 {
			extra = 25
		}
		return 75 + extra
	}
}

// ProfileStrength buckets answer count into a displayable label.
func ProfileStrength(answered int) string {
	switch {
	case answered < 5:
		return "Basic"
	case answered < 15:
		return "Good"
	case answered < 25:
		return "Strong"
	default:
		return "Excellent"
	}
}

// recommendations builds the advisory nudges: completion first, then a
// diversity nudge for the least-covered category, then a milestone teaser.
func recommendations(answered int, stats map[catalog.Category]CategoryStats) []Recommendation {
	var recs []Recommendation

	if answered < essentialAnswerThreshold {
		recs = append(recs, Recommendation{
			Type:            TypeEssential,
			Priority:        PriorityHigh,
			Message:         fmt.Sprintf("Answer %d basic questions to unlock matching", essentialAnswerThreshold),
			QuestionsNeeded: essentialAnswerThreshold - answered,
		})
	} else if answered < 15 {
		recs = append(recs, Recommendation{
			Type:            TypeImprovement,
			Priority:        PriorityMedium,
			Message:         fmt.Sprintf("Answer %d more questions for optimal matching", 15-answered),
			QuestionsNeeded: 15 - answered,
		})
	}

	for _, c := range catalog.Categories() {
		if stats[c].CompletionScore < diversityCompletionsMin {
			recs = append(recs, Recommendation{
				Type:     TypeDiversity,
				Priority: PriorityMedium,
				Message:  fmt.Sprintf("Explore %s questions for a well-rounded profile", c),
				Category: c,
			})
			break
		}
	}

	nextMilestone := (answered/milestoneStep + 1) * milestoneStep
	if nextMilestone-answered <= 3 && answered < 25 {
		recs = append(recs, Recommendation{
			Type:            TypeMilestone,
			Priority:        PriorityLow,
			Message:         fmt.Sprintf("%d questions away from your next milestone", nextMilestone-answered),
			QuestionsNeeded: nextMilestone - answered,
		})
	}

	return recs
}
