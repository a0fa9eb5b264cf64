package dml

import (
	"regexp"

	"github.com/vantos-systems/workorder-engine/internal/interpreter"
	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

// comparisonToken matches a SQL comparison operator: =, <>, !=, <=, >=, <, >,
// or the keywords LIKE/IN, used to tell a real WHERE predicate from a
// rendered clause that substitution reduced to bare literals.
var comparisonToken = regexp.MustCompile(`(?i)(<=|>=|<>|!=|=|<|>|\bLIKE\b|\bIN\b)`)

// Classify grades a run's full accumulator: high for any UPDATE/DELETE whose
// rendered WHERE is empty or has no comparison token, medium for any other
// DELETE or for UPDATEs spanning more than one table, low otherwise. Risk is
// an artifact-wide hint, not a per-statement one.
func Classify(records []interpreter.DmlRecord) Risk {
	updateTables := make(map[string]bool)
	anyDelete := false

	for _, r := range records {
		switch r.Kind {
		case recipe.DMLUpdate:
			if isUnbounded(r) {
				return RiskHigh
			}
			updateTables[r.Table] = true
		case recipe.DMLDelete:
			if isUnbounded(r) {
				return RiskHigh
			}
			anyDelete = true
		}
	}

	if anyDelete || len(updateTables) > 1 {
		return RiskMedium
	}
	return RiskLow
}

func isUnbounded(r interpreter.DmlRecord) bool {
	if r.Where == "" {
		return true
	}
	return !comparisonToken.MatchString(r.Where)
}
