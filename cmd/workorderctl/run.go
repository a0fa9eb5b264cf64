package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vantos-systems/workorder-engine/internal/config"
	"github.com/vantos-systems/workorder-engine/internal/engine"
)

var (
	runCatalogDir string
	runScenario   string
	runOut        string
	runTaskID     string
)

var runCmd = &cobra.Command{
	Use:   "run <work-order-text>",
	Short: "Dry-run a work order against a scripted LLM matcher and SQL probe",
	Long: `Dry-run a work order through the mutation engine without wiring a real
LLM client or database. --scenario points at a JSON file that scripts the
matcher's LLM responses and the probe's query results, so a recipe catalog
can be exercised end to end locally.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCatalogDir, "catalog", "recipes", "recipe catalog directory")
	runCmd.Flags().StringVar(&runScenario, "scenario", "", "path to a scenario JSON file scripting the LLM and probe (required)")
	runCmd.Flags().StringVar(&runOut, "out", "", "write the resulting DML artifact as JSON to this path, in addition to printing it")
	runCmd.Flags().StringVar(&runTaskID, "task-id", "", "correlation id to stamp on the artifact (default: a generated uuid)")
}

func runRun(cmd *cobra.Command, args []string) error {
	workOrderText := args[0]
	if runScenario == "" {
		return fmt.Errorf("--scenario is required")
	}

	sc, err := loadScenario(runScenario)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Catalog.Dir = runCatalogDir

	logger := zap.NewNop()
	eng := engine.New(cfg, sc.fakeLLM(), sc.fakeProbe(), nil, logger)
	if _, err := eng.ReloadCatalog(); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	taskID := runTaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}

	ctx := context.Background()
	result, err := eng.Run(ctx, taskID, workOrderText, sc.UpstreamParams)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	switch result.Kind {
	case engine.ResultArtifact:
		renderArtifact(result.Artifact)
		if runOut != "" {
			data, merr := json.MarshalIndent(result.Artifact, "", "  ")
			if merr != nil {
				return fmt.Errorf("marshal artifact: %w", merr)
			}
			if werr := os.WriteFile(runOut, data, 0644); werr != nil {
				return fmt.Errorf("write %s: %w", runOut, werr)
			}
			fmt.Printf("\nartifact written to %s\n", runOut)
		}
	case engine.ResultNoMatch:
		fmt.Println("no recipe matched this work order")
	case engine.ResultUserError:
		fmt.Printf("recipe returned a user error: %s\n", result.Message)
	case engine.ResultEngineError:
		fmt.Fprintf(os.Stderr, "engine error [%s]: %s\n", result.ErrorKind, result.Message)
		return fmt.Errorf("run failed")
	}
	return nil
}
