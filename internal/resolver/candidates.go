package resolver

import (
	"sort"

	"github.com/prasenjit/go-mockenv/internal/models"
)

// orderCandidates returns a route's responses in the order selection tries them:
// default responses first, then higher priority, then name. ID breaks the
// remaining ties so the order never depends on storage iteration.
func orderCandidates(responses []*models.Response) []*models.Response {
	ordered := make([]*models.Response, len(responses))
	copy(ordered, responses)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.IsDefault != b.IsDefault {
			return a.IsDefault
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	})

	return ordered
}
