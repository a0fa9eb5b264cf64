package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the recipe JSON Schema to stdout",
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	data, err := recipe.GenerateJSONSchema()
	if err != nil {
		return fmt.Errorf("generate schema: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
