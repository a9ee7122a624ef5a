package app

import "quiznight-service/internal/domain"

// multipliers maps arrival position (1-indexed) to the fraction of a
// question's point value awarded for a correct answer. Fourth place and
// beyond share the last entry.
var multipliers = [...]float64{1.0, 0.75, 0.5, 0.25}

func positionMultiplier(position int) float64 {
	idx := position - 1
	if idx >= len(multipliers) {
		idx = len(multipliers) - 1
	}
	return multipliers[idx]
}

// ScoreQuestion computes one ScoringResult per submission, in arrival order,
// followed by a zero-point result for every roster player who submitted
// nothing. A correct answer earns floor(points * multiplier(position)); an
// incorrect or missing answer earns nothing. Pure function of its inputs.
func ScoreQuestion(q domain.Question, subs []domain.Submission, roster []domain.Player) []domain.ScoringResult {
	correct := q.CorrectLetter()
	points := q.EffectivePoints()

	names := make(map[string]string, len(roster))
	for _, p := range roster {
		names[p.ID] = p.Name
	}

	results := make([]domain.ScoringResult, 0, len(roster))
	submitted := make(map[string]bool, len(subs))

	for _, sub := range subs {
		sub := sub
		mult := positionMultiplier(sub.Position)
		res := domain.ScoringResult{
			PlayerID:   sub.PlayerID,
			Name:       names[sub.PlayerID],
			Answer:     &sub.Answer,
			Position:   &sub.Position,
			Multiplier: &mult,
		}
		if correct != "" && sub.Answer == correct {
			res.Correct = true
			res.Points = int(float64(points) * mult)
		}
		results = append(results, res)
		submitted[sub.PlayerID] = true
	}

	for _, p := range roster {
		if submitted[p.ID] {
			continue
		}
		results = append(results, domain.ScoringResult{
			PlayerID: p.ID,
			Name:     p.Name,
		})
	}

	return results
}
