// Package dml assembles the final DML artifact from a completed run's
// accumulator: collecting affected tables and classifying risk.
package dml

import (
	"sort"

	"github.com/vantos-systems/workorder-engine/internal/interpreter"
)

// Risk is a reviewer-facing hint attached to an Artifact. It never gates
// emission.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Artifact is the record handed to the review/notification layer: one
// completed run's accumulated statements plus the bookkeeping reviewers
// need to judge blast radius.
type Artifact struct {
	TaskID          string                  `json:"task_id"`
	RecipeType      string                  `json:"recipe_type"`
	AffectedTables  []string                `json:"affected_tables"`
	Risk            Risk                    `json:"risk"`
	Description     string                  `json:"description"`
	DML             []interpreter.DmlRecord `json:"dml"`
	ContextSnapshot []interpreter.KV        `json:"context_snapshot"`
}

// Assemble builds the Artifact for a Completed outcome. Callers must pass an
// outcome whose Kind is OutcomeCompleted. DML may be empty when the recipe
// reached RETURN_SUCCESS before any GENERATE_DML step; the artifact then
// lists no affected tables.
func Assemble(taskID, recipeType string, outcome interpreter.Outcome) Artifact {
	tables := affectedTables(outcome.DML)
	risk := Classify(outcome.DML)
	return Artifact{
		TaskID:          taskID,
		RecipeType:      recipeType,
		AffectedTables:  tables,
		Risk:            risk,
		Description:     describe(recipeType, tables, risk),
		DML:             outcome.DML,
		ContextSnapshot: outcome.ContextSnapshot,
	}
}

func affectedTables(records []interpreter.DmlRecord) []string {
	seen := make(map[string]bool, len(records))
	var tables []string
	for _, r := range records {
		if !seen[r.Table] {
			seen[r.Table] = true
			tables = append(tables, r.Table)
		}
	}
	sort.Strings(tables)
	return tables
}

func describe(recipeType string, tables []string, risk Risk) string {
	if len(tables) == 0 {
		return recipeType
	}
	if len(tables) == 1 {
		return recipeType + " on " + tables[0] + " (" + string(risk) + " risk)"
	}
	return recipeType + " across " + joinTables(tables) + " (" + string(risk) + " risk)"
}

func joinTables(tables []string) string {
	out := tables[0]
	for _, t := range tables[1:] {
		out += ", " + t
	}
	return out
}
