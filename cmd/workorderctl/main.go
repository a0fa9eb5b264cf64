// Command workorderctl is the operator CLI for the work-order mutation
// engine: validating a recipe catalog, dry-running a work order against
// scripted fakes, reviewing a produced DML artifact, and exporting the
// recipe JSON Schema.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "workorderctl",
	Short: "Operate the work-order mutation engine's recipe catalog and runs",
	Long: `workorderctl is the operator CLI for the declarative work-order mutation
engine: validate a recipe catalog before deploying it, dry-run a work order
against scripted fakes of the LLM matcher and SQL probe, and render a
produced DML artifact for human review.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("workorderctl %s\n", version)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(reloadCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
