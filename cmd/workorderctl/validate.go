package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vantos-systems/workorder-engine/internal/recipe"
)

var validateCmd = &cobra.Command{
	Use:   "validate <catalog-dir>",
	Short: "Load and validate every recipe in a catalog directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

var reloadCmd = &cobra.Command{
	Use:   "reload <catalog-dir>",
	Short: "Same as validate, phrased as the engine's catalog reload operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	dir := args[0]

	store := recipe.NewStore()
	status, err := store.Reload(dir)
	if err != nil {
		return fmt.Errorf("reload %s: %w", dir, err)
	}

	fmt.Printf("loaded %d recipe(s) from %s\n", status.Loaded, dir)
	if len(status.Errors) == 0 {
		fmt.Println("no errors")
		return nil
	}

	fmt.Fprintf(os.Stderr, "%d file(s) failed to load:\n", len(status.Errors))
	for _, fe := range status.Errors {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", fe.File, fe.Reason)
	}
	return fmt.Errorf("catalog validation failed with %d error(s)", len(status.Errors))
}
