package scoring

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/soulsync/match-engine/internal/catalog"
)

// testCatalog builds a small catalog covering all six categories:
// one weight-9 scale question and one weight-7 multiple-choice question per
// category, plus the designated communication-frequency question.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	var questions []catalog.Question
	for _, c := range catalog.Categories() {
		questions = append(questions,
			catalog.Question{
				ID: fmt.Sprintf("%s_scale", c), Category: c,
				Type: catalog.TypeScale, Weight: 9, MinValue: 1, MaxValue: 10,
			},
			catalog.Question{
				ID: fmt.Sprintf("%s_choice", c), Category: c,
				Type: catalog.TypeMultiple, Weight: 7,
				Options: []string{"direct", "gentle", "playful"},
			},
		)
	}
	questions = append(questions, catalog.Question{
		ID: "communication_1", Category: catalog.CategoryCommunication,
		Type: catalog.TypeScale, Weight: 8, MinValue: 1, MaxValue: 10,
	})
	return catalog.New(questions)
}

func newScorer() *Scorer {
	return &Scorer{CommQuestionID: "communication_1", Bonuses: true}
}

func TestScore_EmptyIntersection(t *testing.T) {
	cat := testCatalog(t)
	s := newScorer()

	a := Profile{Answers: map[string]string{"personality_scale": "5"}}
	b := Profile{Answers: map[string]string{"values_scale": "5"}}

	res := s.Score(cat, a, b)
	if res.Score != 0 {
		t.Errorf("disjoint answers: score = %v, want 0", res.Score)
	}
	if res.Confidence != 0 {
		t.Errorf("disjoint answers: confidence = %v, want 0", res.Confidence)
	}
	if res.Explanation == "" {
		t.Error("disjoint answers: expected an insufficient-data explanation")
	}
}

func TestScore_NoAnswersIsDegenerateNotError(t *testing.T) {
	cat := testCatalog(t)
	s := newScorer()

	res := s.Score(cat, Profile{}, Profile{Answers: map[string]string{"values_scale": "3"}})
	if res.Score != 0 || res.Confidence != 0 {
		t.Errorf("empty side: got score=%v confidence=%v, want zeros", res.Score, res.Confidence)
	}
	if !strings.Contains(res.Explanation, "Insufficient data") {
		t.Errorf("explanation = %q, want insufficient-data message", res.Explanation)
	}
}

func TestScore_Symmetry(t *testing.T) {
	cat := testCatalog(t)
	s := newScorer()

	a := Profile{
		Answers: map[string]string{
			"personality_scale":  "8",
			"personality_choice": "direct",
			"values_scale":       "2",
			"lifestyle_choice":   "playful",
			"communication_1":    "6",
			"values_free":        "hiking music travel",
		},
		Interests: []string{"Hiking", "Jazz"},
	}
	b := Profile{
		Answers: map[string]string{
			"personality_scale":  "4",
			"personality_choice": "gentle",
			"values_scale":       "9",
			"lifestyle_choice":   "playful",
			"communication_1":    "7",
			"relationship_scale": "5",
		},
		Interests: []string{"jazz", "cooking"},
	}

	ab := s.Score(cat, a, b)
	ba := s.Score(cat, b, a)

	if ab.Score != ba.Score {
		t.Errorf("score not symmetric: %v vs %v", ab.Score, ba.Score)
	}
	if ab.Confidence != ba.Confidence {
		t.Errorf("confidence not symmetric: %v vs %v", ab.Confidence, ba.Confidence)
	}
	for _, c := range catalog.Categories() {
		if ab.Breakdown[c].Score != ba.Breakdown[c].Score {
			t.Errorf("category %s not symmetric: %v vs %v", c, ab.Breakdown[c].Score, ba.Breakdown[c].Score)
		}
	}
}

func TestScore_RangeInvariant(t *testing.T) {
	cat := testCatalog(t)
	s := newScorer()

	profiles := []Profile{
		{},
		{Answers: map[string]string{"personality_scale": "1"}},
		{
			Answers: map[string]string{
				"personality_scale": "10", "values_scale": "1",
				"communication_1": "10", "lifestyle_choice": "direct",
			},
			Interests: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		},
		{
			Answers: map[string]string{
				"personality_scale": "10", "values_scale": "1",
				"communication_1": "9", "lifestyle_choice": "direct",
			},
			Interests: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		},
	}

	for i, a := range profiles {
		for j, b := range profiles {
			res := s.Score(cat, a, b)
			if res.Score < MinScore || res.Score > MaxScore {
				t.Errorf("profiles %d/%d: score %v out of [0,10]", i, j, res.Score)
			}
			if res.Confidence < 0 || res.Confidence > 1 {
				t.Errorf("profiles %d/%d: confidence %v out of [0,1]", i, j, res.Confidence)
			}
		}
	}
}

// Worked example: q1 scale answered identically, q2 multiple-choice
// answered differently. Two common questions, few total answers.
func TestScore_MixedScenario(t *testing.T) {
	cat := catalog.New([]catalog.Question{
		{ID: "q1", Category: catalog.CategoryPersonality, Type: catalog.TypeScale,
			Weight: 9, MinValue: 1, MaxValue: 10},
		{ID: "q2", Category: catalog.CategoryPersonality, Type: catalog.TypeMultiple,
			Weight: 7, Options: []string{"direct", "gentle"}},
	})
	s := &Scorer{}

	a := Profile{Answers: map[string]string{"q1": "8", "q2": "direct"}}
	b := Profile{Answers: map[string]string{"q1": "8", "q2": "gentle"}}

	res := s.Score(cat, a, b)

	// Weighted blend: (1.0*9 + 0.0*7) / 16 * 10 = 5.625, rounded to 5.6.
	personality := res.Breakdown[catalog.CategoryPersonality]
	if personality.Score != 5.6 {
		t.Errorf("personality score = %v, want 5.6", personality.Score)
	}
	if personality.QuestionCount != 2 {
		t.Errorf("personality question count = %d, want 2", personality.QuestionCount)
	}

	if res.Score <= 0 || res.Score >= 10 {
		t.Errorf("overall score = %v, want strictly between 0 and 10", res.Score)
	}
	// 0.6*min(1, 2/10) + 0.4*min(1, 2/8) = 0.12 + 0.10 = 0.22.
	if res.Confidence != 0.22 {
		t.Errorf("confidence = %v, want 0.22", res.Confidence)
	}
}

func TestScore_IdenticalAnswersAcrossAllCategories(t *testing.T) {
	cat := testCatalog(t)
	s := &Scorer{} // no bonuses: verify the core average alone reaches 10

	answers := make(map[string]string)
	for _, c := range catalog.Categories() {
		answers[fmt.Sprintf("%s_scale", c)] = "6"
		answers[fmt.Sprintf("%s_choice", c)] = "gentle"
	}
	answers["communication_1"] = "5"

	a := Profile{Answers: answers}
	b := Profile{Answers: answers}

	res := s.Score(cat, a, b)
	if res.Score != 10 {
		t.Errorf("identical answer sets: score = %v, want 10", res.Score)
	}
	if res.Confidence != 1 {
		t.Errorf("identical answer sets: confidence = %v, want 1 (13 answers, 13 common)", res.Confidence)
	}
}

func TestScore_MonotonicConfidence(t *testing.T) {
	cat := testCatalog(t)
	s := &Scorer{}

	answers := make(map[string]string)
	prev := -1.0
	for _, c := range catalog.Categories() {
		answers[fmt.Sprintf("%s_scale", c)] = "5"
		a := Profile{Answers: answers}
		b := Profile{Answers: answers}

		conf := s.Score(cat, a, b).Confidence
		if conf < prev {
			t.Errorf("confidence decreased from %v to %v at %d common questions",
				prev, conf, len(answers))
		}
		prev = conf
	}
}

func TestScore_MalformedQuestionDegradesOneDataPoint(t *testing.T) {
	cat := catalog.New([]catalog.Question{
		{ID: "good", Category: catalog.CategoryValues, Type: catalog.TypeScale,
			Weight: 5, MinValue: 1, MaxValue: 10},
		{ID: "broken", Category: catalog.CategoryValues, Type: catalog.TypeScale,
			Weight: 5}, // missing bounds
	})
	s := &Scorer{}

	a := Profile{Answers: map[string]string{"good": "5", "broken": "5"}}
	b := Profile{Answers: map[string]string{"good": "5", "broken": "7"}}

	res := s.Score(cat, a, b)
	values := res.Breakdown[catalog.CategoryValues]
	if values.QuestionCount != 1 {
		t.Errorf("question count = %d, want 1 (broken question skipped)", values.QuestionCount)
	}
	if values.Score != 10 {
		t.Errorf("values score = %v, want 10 from the surviving question", values.Score)
	}
}

func TestScore_BonusesAreCappedAndAdditive(t *testing.T) {
	cat := testCatalog(t)

	answers := map[string]string{
		"personality_scale": "5",
		"values_scale":      "5",
		"communication_1":   "5",
	}
	manyInterests := []string{"i1", "i2", "i3", "i4", "i5", "i6", "i7", "i8"}

	with := &Scorer{CommQuestionID: "communication_1", Bonuses: true}
	without := &Scorer{CommQuestionID: "communication_1", Bonuses: false}

	a := Profile{Answers: answers, Interests: manyInterests}
	b := Profile{Answers: answers, Interests: manyInterests}

	base := without.Score(cat, a, b).Score
	boosted := with.Score(cat, a, b).Score

	if base != 10 {
		t.Fatalf("identical core answers: base score = %v, want 10", base)
	}
	// Bonuses never push past the clamp.
	if boosted != 10 {
		t.Errorf("boosted score = %v, want clamped 10", boosted)
	}

	// On a mid-range pair the two bonuses add at most 1.0 + 0.5.
	aMixed := Profile{Answers: map[string]string{
		"personality_scale": "2", "communication_1": "5",
	}, Interests: manyInterests}
	bMixed := Profile{Answers: map[string]string{
		"personality_scale": "8", "communication_1": "6",
	}, Interests: manyInterests}

	baseMixed := without.Score(cat, aMixed, bMixed).Score
	boostedMixed := with.Score(cat, aMixed, bMixed).Score
	gain := boostedMixed - baseMixed
	if gain < 0 || gain > 1.5+1e-9 {
		t.Errorf("bonus gain = %v, want within [0, 1.5]", gain)
	}
	if math.Abs(gain-1.5) > 0.05+1e-9 {
		// 8 shared interests cap at +1.0; comm delta 1 earns +0.5.
		t.Errorf("bonus gain = %v, want ~1.5 (interest cap + close communication)", gain)
	}
}

func TestExplain_Thresholds(t *testing.T) {
	cat := testCatalog(t)
	s := &Scorer{}

	// Enough depth and coverage for confident output, all identical answers.
	answers := make(map[string]string)
	for _, c := range catalog.Categories() {
		answers[fmt.Sprintf("%s_scale", c)] = "5"
		answers[fmt.Sprintf("%s_choice", c)] = "direct"
	}
	res := s.Score(cat, Profile{Answers: answers}, Profile{Answers: answers})
	if !strings.Contains(res.Explanation, "High compatibility") {
		t.Errorf("all-strong explanation = %q", res.Explanation)
	}

	// Low confidence path.
	thin := map[string]string{"personality_scale": "5"}
	res = s.Score(cat, Profile{Answers: thin}, Profile{Answers: thin})
	if !strings.Contains(res.Explanation, "Answer more questions") {
		t.Errorf("low-confidence explanation = %q", res.Explanation)
	}
}
