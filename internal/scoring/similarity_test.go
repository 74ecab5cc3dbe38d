package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/soulsync/match-engine/internal/catalog"
)

func scaleQ(id string, min, max int) catalog.Question {
	return catalog.Question{
		ID: id, Category: catalog.CategoryPersonality,
		Type: catalog.TypeScale, Weight: 5, MinValue: min, MaxValue: max,
	}
}

func choiceQ(id string, options ...string) catalog.Question {
	return catalog.Question{
		ID: id, Category: catalog.CategoryLifestyle,
		Type: catalog.TypeMultiple, Weight: 5, Options: options,
	}
}

func textQ(id string) catalog.Question {
	return catalog.Question{
		ID: id, Category: catalog.CategoryValues,
		Type: catalog.TypeText, Weight: 5,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScaleSimilarity_Boundaries(t *testing.T) {
	q := scaleQ("personality_1", 1, 10)

	sim, err := Similarity(q, "1", "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(sim, 0) {
		t.Errorf("opposite bounds: similarity = %v, want 0", sim)
	}

	sim, err = Similarity(q, "7", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !almostEqual(sim, 1) {
		t.Errorf("identical answers: similarity = %v, want 1", sim)
	}

	sim, err = Similarity(q, "4", "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := 1 - 3.0/9.0
	if !almostEqual(sim, want) {
		t.Errorf("distance 3 over range 9: similarity = %v, want %v", sim, want)
	}
}

func TestScaleSimilarity_BadInputs(t *testing.T) {
	q := scaleQ("personality_1", 1, 10)

	if _, err := Similarity(q, "often", "7"); !errors.Is(err, ErrBadAnswer) {
		t.Errorf("non-numeric answer: got %v, want ErrBadAnswer", err)
	}

	degenerate := scaleQ("personality_2", 5, 5)
	if _, err := Similarity(degenerate, "5", "5"); !errors.Is(err, catalog.ErrInvalidQuestion) {
		t.Errorf("zero-range scale: got %v, want ErrInvalidQuestion", err)
	}
}

func TestChoiceSimilarity_NoPartialCredit(t *testing.T) {
	q := choiceQ("communication_style", "direct", "gentle", "playful")

	sim, err := Similarity(q, "direct", "direct")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim != 1.0 {
		t.Errorf("identical tokens: similarity = %v, want exactly 1", sim)
	}

	sim, err = Similarity(q, "direct", "gentle")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim != 0.0 {
		t.Errorf("different tokens: similarity = %v, want exactly 0", sim)
	}
}

func TestTextSimilarity_TokenOverlap(t *testing.T) {
	q := textQ("values_free")

	sim, err := Similarity(q, "Hiking and cooking", "cooking and reading books")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Shared distinct words: {and, cooking} over max(3, 4) tokens.
	if !almostEqual(sim, 0.5) {
		t.Errorf("overlap ratio = %v, want 0.5", sim)
	}

	// Symmetric regardless of which side is longer or repeats words.
	forward, _ := Similarity(q, "sea sea sun", "sun sand")
	backward, _ := Similarity(q, "sun sand", "sea sea sun")
	if !almostEqual(forward, backward) {
		t.Errorf("text similarity asymmetric: %v vs %v", forward, backward)
	}

	sim, err = Similarity(q, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sim != 0 {
		t.Errorf("two empty answers: similarity = %v, want 0", sim)
	}
}

func TestSimilarity_UnknownTypeIsInvalid(t *testing.T) {
	q := textQ("values_free")
	q.Type = "ranked"

	// Structurally invalid: unknown types surface as catalog defects.
	if _, err := Similarity(q, "a", "b"); !errors.Is(err, catalog.ErrInvalidQuestion) {
		t.Errorf("unknown type: got %v, want ErrInvalidQuestion", err)
	}
}
