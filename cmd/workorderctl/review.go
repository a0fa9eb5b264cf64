package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/vantos-systems/workorder-engine/internal/dml"
)

var reviewCmd = &cobra.Command{
	Use:   "review <artifact.json>",
	Short: "Render a DML artifact for human review, risk-colored",
	Args:  cobra.ExactArgs(1),
	RunE:  runReview,
}

func runReview(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	var artifact dml.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return fmt.Errorf("parsing %s: %w", args[0], err)
	}
	renderArtifact(artifact)
	return nil
}

var (
	colorGreen  = lipgloss.Color("42")
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")

	riskLowStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorGreen)
	riskMediumStyle = lipgloss.NewStyle().Bold(true).Foreground(colorYellow)
	riskHighStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorRed)

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	dimStyle   = lipgloss.NewStyle().Foreground(colorDim)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorDim).
			Padding(0, 1)
)

func riskStyle(r dml.Risk) lipgloss.Style {
	switch r {
	case dml.RiskHigh:
		return riskHighStyle
	case dml.RiskMedium:
		return riskMediumStyle
	default:
		return riskLowStyle
	}
}

// renderArtifact pretty-prints a DML artifact for operator review. The
// literal SQL form is display-only here; any real executor downstream must
// use TemplateSQL + Parameters.
func renderArtifact(a dml.Artifact) {
	fmt.Println(titleStyle.Render(fmt.Sprintf("work order %s (%s)", a.TaskID, a.RecipeType)))
	fmt.Printf("risk: %s\n", riskStyle(a.Risk).Render(string(a.Risk)))
	fmt.Printf("affected tables: %v\n", a.AffectedTables)
	fmt.Println(dimStyle.Render(a.Description))
	fmt.Println()

	for i, rec := range a.DML {
		body := fmt.Sprintf("%d. %s %s\n\n  %s\n\n  %s\n  params: %v",
			i+1, rec.Kind, rec.Table, rec.RenderedSQL, rec.TemplateSQL, rec.Parameters)
		fmt.Println(panelStyle.Render(body))
	}
}
