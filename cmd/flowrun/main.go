package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"flowcore/internal/config"
	"flowcore/internal/logging"
	"flowcore/internal/telemetry"
	"flowcore/internal/workflow"
	"flowcore/loader"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config

	rootCmd = &cobra.Command{
		Use:   "flowrun",
		Short: "Run Amazon States Language style workflow definitions",
	}

	runCmd = &cobra.Command{
		Use:   "run [definition.yaml]",
		Short: "Build and run a state machine definition to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  runWorkflow,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/flowrun/config.yaml)")
	runCmd.Flags().String("input", "{}", "JSON value to use as the execution's initial input")
	runCmd.Flags().Bool("allow-expression-eval", false, "enable the States.Eval intrinsic (executes caller-supplied Starlark)")
	rootCmd.AddCommand(runCmd)
}

func initConfig() {
	if err := config.InitViper(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "flowrun: config: %v\n", err)
		os.Exit(1)
	}
	loaded, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "flowrun: config: %v\n", err)
		os.Exit(1)
	}
	cfg = loaded
	logging.Initialize(cfg.Debug)
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	def, err := loader.Load(args[0])
	if err != nil {
		return err
	}

	inputRaw, _ := cmd.Flags().GetString("input")
	var input workflow.Value
	if err := json.Unmarshal([]byte(inputRaw), &input); err != nil {
		return fmt.Errorf("flowrun: --input is not valid JSON: %w", err)
	}

	allowEval, _ := cmd.Flags().GetBool("allow-expression-eval")
	if cfg.AllowExpressionEval {
		allowEval = true
	}

	var schema []byte
	if cfg.SchemaPath != "" {
		schema, err = os.ReadFile(cfg.SchemaPath)
		if err != nil {
			return fmt.Errorf("flowrun: reading schema: %w", err)
		}
	}

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("flowrun: telemetry: %w", err)
	}
	defer shutdownTelemetry(ctx)

	var engineTelemetry *workflow.Telemetry
	if cfg.Telemetry.Enabled {
		engineTelemetry, err = workflow.NewTelemetry()
		if err != nil {
			return fmt.Errorf("flowrun: telemetry: %w", err)
		}
	}
	engine := workflow.NewEngine(engineTelemetry)

	// No executor is registered for any specific Resource, so every Task
	// state runs against the engine's built-in simulated result -- this
	// is a demo CLI, not a resource dispatcher.
	registry := workflow.NewExecutorRegistry()

	opts := []workflow.BuildOption{
		workflow.WithEngine(engine),
		workflow.WithExecutor(registry),
		workflow.WithExpressionIntrinsic(allowEval),
	}
	if len(schema) > 0 {
		opts = append(opts, workflow.WithSchema(schema))
	}

	sm, result, err := workflow.Build(def, opts...)
	if err != nil {
		for _, issue := range result.Errors {
			fmt.Fprintf(os.Stderr, "flowrun: %s: %s: %s\n", issue.Code, issue.Path, issue.Message)
		}
		return err
	}

	execLogger := logging.WorkflowLogger{}
	execution := engine.StartExecution(fmt.Sprintf("flowrun-%d", time.Now().Unix()), sm, input, execLogger)

	runErr := engine.RunAll(ctx, execution)

	output, _ := json.MarshalIndent(execution.Snapshot(), "", "  ")
	fmt.Println(string(output))

	return runErr
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
