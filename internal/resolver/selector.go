package resolver

import (
	"fmt"

	"github.com/prasenjit/go-mockenv/internal/models"
	"github.com/prasenjit/go-mockenv/internal/rule"
)

// selection is the response picked for a request and how it was picked
type selection struct {
	response *models.Response
	outcome  Outcome
}

// selectResponse picks the first candidate whose non-empty rule set fully
// matches. Without such a candidate it falls back to the first default, then
// to the first candidate. candidates must not be empty.
func selectResponse(repo Repository, evaluator *rule.Evaluator, candidates []*models.Response, data *rule.RequestData) (selection, error) {
	for _, candidate := range candidates {
		rules, err := repo.Rules(candidate.ID)
		if err != nil {
			return selection{}, fmt.Errorf("rules for response %d: %w", candidate.ID, err)
		}

		// Responses without rules are only reachable through the fallbacks
		if len(rules) == 0 {
			continue
		}

		if evaluator.EvaluateAll(rules, data) {
			return selection{response: candidate, outcome: OutcomeMatchedRules}, nil
		}
	}

	for _, candidate := range candidates {
		if candidate.IsDefault {
			return selection{response: candidate, outcome: OutcomeDefault}, nil
		}
	}

	return selection{response: candidates[0], outcome: OutcomeFirst}, nil
}
