package app

import (
	"testing"

	"quiznight-service/internal/domain"
)

func scoringQuestion(points int) domain.Question {
	return domain.Question{
		ID:      "q1",
		Prompt:  "Pick the right one",
		Options: []string{"wrong", "right", "also wrong", "nope"},
		Answer:  "right",
		Points:  points,
	}
}

func TestScoreQuestionSpeedMultipliers(t *testing.T) {
	q := scoringQuestion(100)

	roster := []domain.Player{
		{ID: "p1", Name: "P1"},
		{ID: "p2", Name: "P2"},
		{ID: "p3", Name: "P3"},
		{ID: "p4", Name: "P4"},
		{ID: "p5", Name: "P5"},
	}
	subs := []domain.Submission{
		{PlayerID: "p1", Answer: "B", Position: 1},
		{PlayerID: "p2", Answer: "B", Position: 2},
		{PlayerID: "p3", Answer: "C", Position: 3},
		{PlayerID: "p4", Answer: "B", Position: 4},
	}

	results := ScoreQuestion(q, subs, roster)
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(results))
	}

	wantPoints := map[string]int{"p1": 100, "p2": 75, "p3": 0, "p4": 25, "p5": 0}
	wantCorrect := map[string]bool{"p1": true, "p2": true, "p3": false, "p4": true, "p5": false}
	for _, res := range results {
		if res.Points != wantPoints[res.PlayerID] {
			t.Fatalf("%s: expected %d points, got %d", res.PlayerID, wantPoints[res.PlayerID], res.Points)
		}
		if res.Correct != wantCorrect[res.PlayerID] {
			t.Fatalf("%s: expected correct=%v, got %v", res.PlayerID, wantCorrect[res.PlayerID], res.Correct)
		}
	}
}

func TestScoreQuestionNonSubmittersGetNilDetails(t *testing.T) {
	q := scoringQuestion(100)
	roster := []domain.Player{{ID: "p1", Name: "P1"}, {ID: "p2", Name: "P2"}}
	subs := []domain.Submission{{PlayerID: "p1", Answer: "B", Position: 1}}

	results := ScoreQuestion(q, subs, roster)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	absent := results[1]
	if absent.PlayerID != "p2" {
		t.Fatalf("expected p2 last, got %s", absent.PlayerID)
	}
	if absent.Answer != nil || absent.Position != nil || absent.Multiplier != nil {
		t.Fatalf("expected nil answer details for non-submitter, got %+v", absent)
	}
	if absent.Points != 0 || absent.Correct {
		t.Fatalf("expected zero-point incorrect result, got %+v", absent)
	}
}

func TestScoreQuestionFloorsFractionalPoints(t *testing.T) {
	q := scoringQuestion(15)
	roster := []domain.Player{{ID: "p1", Name: "P1"}, {ID: "p2", Name: "P2"}}
	subs := []domain.Submission{
		{PlayerID: "p1", Answer: "B", Position: 1},
		{PlayerID: "p2", Answer: "B", Position: 2},
	}

	results := ScoreQuestion(q, subs, roster)
	if results[0].Points != 15 {
		t.Fatalf("expected first submitter to get full 15, got %d", results[0].Points)
	}
	// 15 * 0.75 = 11.25, truncated.
	if results[1].Points != 11 {
		t.Fatalf("expected 11 points for second submitter, got %d", results[1].Points)
	}
}

func TestPositionMultiplierCapsAtFourth(t *testing.T) {
	cases := map[int]float64{1: 1.0, 2: 0.75, 3: 0.5, 4: 0.25, 5: 0.25, 9: 0.25}
	for pos, want := range cases {
		if got := positionMultiplier(pos); got != want {
			t.Fatalf("position %d: expected %v, got %v", pos, want, got)
		}
	}
}

func TestScoreQuestionNoMatchingOptionScoresNothing(t *testing.T) {
	q := domain.Question{
		ID:      "q1",
		Prompt:  "Free text",
		Options: []string{"a", "b"},
		Answer:  "unlisted",
		Points:  100,
	}
	subs := []domain.Submission{{PlayerID: "p1", Answer: "A", Position: 1}}
	results := ScoreQuestion(q, subs, []domain.Player{{ID: "p1", Name: "P1"}})
	if results[0].Correct || results[0].Points != 0 {
		t.Fatalf("expected no score when answer matches no option, got %+v", results[0])
	}
}
