package scoring

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/soulsync/match-engine/internal/catalog"
)

// ErrBadAnswer marks an answer that cannot be interpreted under its
// question's type (e.g. a non-numeric scale answer). Callers skip the
// question and keep going; the defect degrades one data point, not the score.
var ErrBadAnswer = errors.New("scoring: uninterpretable answer")

// similarityFunc computes the similarity of two answers in [0,1].
type similarityFunc func(q catalog.Question, a, b string) (float64, error)

// similarityByType dispatches on question type. Adding a new question type
// means adding one entry here, not a new code path through the scorer.
var similarityByType = map[catalog.QuestionType]similarityFunc{
	catalog.TypeScale:    scaleSimilarity,
	catalog.TypeMultiple: choiceSimilarity,
	catalog.TypeText:     textSimilarity,
}

// Similarity computes the per-question similarity of two answers.
// The question must be structurally valid (see catalog.Question.Validate);
// a malformed question or answer yields an error, never a panic.
func Similarity(q catalog.Question, a, b string) (float64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	// Validate guarantees the type is in the table.
	return similarityByType[q.Type](q, a, b)
}

// scaleSimilarity maps numeric distance onto [0,1] linearly:
// identical answers score 1, answers at opposite bounds score 0.
func scaleSimilarity(q catalog.Question, a, b string) (float64, error) {
	va, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not numeric", ErrBadAnswer, q.ID, a)
	}
	vb, err := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %q is not numeric", ErrBadAnswer, q.ID, b)
	}

	span := float64(q.MaxValue - q.MinValue)
	distance := va - vb
	if distance < 0 {
		distance = -distance
	}

	sim := 1 - distance/span
	return clamp01(sim), nil
}

// choiceSimilarity gives full credit for the same option token and none
// otherwise. Options are nominal, not ordinal: there is no partial credit
// between adjacent options.
func choiceSimilarity(_ catalog.Question, a, b string) (float64, error) {
	if a == b {
		return 1, nil
	}
	return 0, nil
}

// textSimilarity is a crude token-overlap ratio over lowercase
// whitespace-delimited words: shared words divided by the longer answer's
// word count. Deterministic by construction.
func textSimilarity(_ catalog.Question, a, b string) (float64, error) {
	wordsA := strings.Fields(strings.ToLower(a))
	wordsB := strings.Fields(strings.ToLower(b))

	longest := len(wordsA)
	if len(wordsB) > longest {
		longest = len(wordsB)
	}
	if longest == 0 {
		return 0, nil
	}

	// Count distinct shared words so the ratio is symmetric in its arguments.
	setB := make(map[string]bool, len(wordsB))
	for _, w := range wordsB {
		setB[w] = true
	}

	seen := make(map[string]bool, len(wordsA))
	shared := 0
	for _, w := range wordsA {
		if setB[w] && !seen[w] {
			seen[w] = true
			shared++
		}
	}

	return clamp01(float64(shared) / float64(longest)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
