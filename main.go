package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		Logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "benchto",
		Short: "Expand benchmark descriptors and annotated queries into runnable benchmarks",
		Long: `benchto reads yaml benchmark descriptors and annotated sql files and
expands them into the ordered list of benchmarks a driver executes.

Descriptors live in the benchmarks dir, queries in the sql dir; both may be
local directories or s3://bucket/prefix locations.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "config file (default ./benchto.yaml when present)")
	root.PersistentFlags().String("log-level", "", "log level override")

	root.AddCommand(expandCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(planCmd())
	root.AddCommand(plansCmd())
	return root
}

func loadConfig(cmd *cobra.Command) (*Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if err := SetLogLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return cfg, nil
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("var", nil, "only keep variable combinations with name=value (repeatable)")
	cmd.Flags().Bool("continue", false, "skip broken descriptors instead of failing")
	cmd.Flags().String("sequence-id", "", "sequence id (random when empty)")
}

// applySelection lets positional descriptor names and flags override the
// configured selection.
func applySelection(cmd *cobra.Command, cfg *Config, args []string) (string, error) {
	if len(args) > 0 {
		cfg.ActiveBenchmarks = args
	}
	vars, _ := cmd.Flags().GetStringSlice("var")
	if len(vars) > 0 {
		active, err := parseActiveVariables(strings.Join(vars, ","))
		if err != nil {
			return "", err
		}
		cfg.ActiveVariables = active
	}
	if proceed, _ := cmd.Flags().GetBool("continue"); proceed {
		cfg.LoadMode = CollectAndContinue
	}
	sequenceID, _ := cmd.Flags().GetString("sequence-id")
	if sequenceID == "" {
		sequenceID = uuid.NewString()
	}
	return sequenceID, nil
}

func buildLoader(ctx context.Context, cfg *Config) (*BenchmarkLoader, error) {
	descriptors, err := OpenSource(ctx, cfg.BenchmarksDir, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to open benchmarks dir: %w", err)
	}
	queries, err := OpenSource(ctx, cfg.SQLDir, cfg.S3)
	if err != nil {
		return nil, fmt.Errorf("failed to open sql dir: %w", err)
	}
	return NewBenchmarkLoader(cfg.LoaderConfig(), descriptors, NewFileQueryLoader(queries), NewNameGenerator(cfg.Naming)), nil
}

func expandCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand [descriptor...]",
		Short: "Print the benchmarks expanded from the active descriptors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sequenceID, err := applySelection(cmd, cfg, args)
			if err != nil {
				return err
			}
			loader, err := buildLoader(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			result, err := loader.LoadBenchmarks(cmd.Context(), sequenceID)
			if err != nil {
				return err
			}
			asJson, _ := cmd.Flags().GetBool("json")
			if asJson {
				return writeJson(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	addSelectionFlags(cmd)
	cmd.Flags().Bool("json", false, "print benchmarks as json")
	return cmd
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one annotated query file and print its properties and statements",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(cmd); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			data, err = decompress(args[0], data)
			if err != nil {
				return err
			}
			query, err := ParseQueryFile(StripCompression(args[0]), data)
			if err != nil {
				return err
			}

			statements := query.SQLTemplates()
			vars, _ := cmd.Flags().GetStringSlice("var")
			if len(vars) > 0 {
				attributes := make(Attributes)
				for _, entry := range vars {
					name, value, ok := strings.Cut(entry, "=")
					if !ok {
						return fmt.Errorf("invalid variable '%v', expected name=value", entry)
					}
					attributes[strings.TrimSpace(name)] = StringAttribute(strings.TrimSpace(value))
				}
				statements, err = query.Render(attributes)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "query %v\n", query.Name)
			for _, property := range query.Properties {
				fmt.Fprintf(out, "  property %v = %v\n", property.Key, property.Value)
			}
			if names := query.Placeholders(); len(names) > 0 {
				fmt.Fprintf(out, "  placeholders %v\n", strings.Join(names, ", "))
			}
			for i, statement := range statements {
				fmt.Fprintf(out, "  statement #%v:\n%v\n", i+1, statement)
			}
			return nil
		},
	}
	cmd.Flags().StringSlice("var", nil, "render ${name} placeholders with name=value (repeatable)")
	return cmd
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [descriptor...]",
		Short: "Expand the active descriptors and store the plan in the meta database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			sequenceID, err := applySelection(cmd, cfg, args)
			if err != nil {
				return err
			}
			loader, err := buildLoader(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			hostname, _ := os.Hostname()
			system := NewSystem(NewStorage(cfg.Storage), loader, hostname, cfg.Storage.MetaName)
			createDb, _ := cmd.Flags().GetBool("create-db")
			result, err := system.Plan(cmd.Context(), sequenceID, createDb)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sequence %v: %v benchmarks planned, %v descriptors skipped\n", sequenceID, len(result.Benchmarks), len(result.Skipped))
			for _, skipped := range result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "  skipped %v\n", skipped)
			}
			return nil
		},
	}
	addSelectionFlags(cmd)
	cmd.Flags().Bool("create-db", false, "create the meta database through the turso api first")
	return cmd
}

func plansCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plans <sequence-id>",
		Short: "List the benchmarks stored for a sequence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			system := NewSystem(NewStorage(cfg.Storage), nil, "", cfg.Storage.MetaName)
			plans, parameters, err := system.Stored(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sequence %v planned at %v on %v\n", args[0], parameters["time"], parameters["hostname"])
			for _, plan := range plans {
				fmt.Fprintf(out, "%3d %v data-source=%v runs=%v prewarm=%v concurrency=%v queries=%v\n",
					plan.Position, plan.UniqueName, plan.DataSource, plan.Runs, plan.PrewarmRuns, plan.Concurrency, strings.Join(plan.Queries, ","))
			}
			return nil
		},
	}
}

func printResult(out io.Writer, result *LoadResult) {
	for _, benchmark := range result.Benchmarks {
		fmt.Fprintf(out, "%v\n", benchmark.UniqueName)
		fmt.Fprintf(out, "  data-source: %v\n", benchmark.DataSource)
		fmt.Fprintf(out, "  runs: %v, prewarm-runs: %v, concurrency: %v\n", benchmark.Runs, benchmark.PrewarmRuns, benchmark.Concurrency)
		fmt.Fprintf(out, "  queries: %v\n", strings.Join(benchmark.QueryNames(), ", "))
		if len(benchmark.BeforeBenchmarkMacros) > 0 || len(benchmark.AfterBenchmarkMacros) > 0 {
			fmt.Fprintf(out, "  macros: before=%v after=%v\n", benchmark.BeforeBenchmarkMacros, benchmark.AfterBenchmarkMacros)
		}
		for _, name := range VariableBinding(benchmark.Variables).Names() {
			fmt.Fprintf(out, "  variable %v = %v\n", name, benchmark.Variables[name])
		}
	}
	for _, skipped := range result.Skipped {
		fmt.Fprintf(out, "skipped: %v\n", skipped)
	}
}

type benchmarkJson struct {
	Name                  string            `json:"name"`
	UniqueName            string            `json:"uniqueName"`
	Descriptor            string            `json:"descriptor"`
	DataSource            string            `json:"dataSource"`
	Queries               []string          `json:"queries"`
	Runs                  int               `json:"runs"`
	PrewarmRuns           int               `json:"prewarmRuns"`
	Concurrency           int               `json:"concurrency"`
	BeforeBenchmarkMacros []string          `json:"beforeBenchmarkMacros"`
	AfterBenchmarkMacros  []string          `json:"afterBenchmarkMacros"`
	BeforeExecutionMacros []string          `json:"beforeExecutionMacros"`
	AfterExecutionMacros  []string          `json:"afterExecutionMacros"`
	Variables             map[string]string `json:"variables"`
}

func writeJson(out io.Writer, result *LoadResult) error {
	benchmarks := make([]benchmarkJson, 0, len(result.Benchmarks))
	for _, benchmark := range result.Benchmarks {
		benchmarks = append(benchmarks, benchmarkJson{
			Name:                  benchmark.Name,
			UniqueName:            benchmark.UniqueName,
			Descriptor:            benchmark.Descriptor,
			DataSource:            benchmark.DataSource,
			Queries:               benchmark.QueryNames(),
			Runs:                  benchmark.Runs,
			PrewarmRuns:           benchmark.PrewarmRuns,
			Concurrency:           benchmark.Concurrency,
			BeforeBenchmarkMacros: benchmark.BeforeBenchmarkMacros,
			AfterBenchmarkMacros:  benchmark.AfterBenchmarkMacros,
			BeforeExecutionMacros: benchmark.BeforeExecutionMacros,
			AfterExecutionMacros:  benchmark.AfterExecutionMacros,
			Variables:             benchmark.Variables,
		})
	}
	skipped := make([]string, 0, len(result.Skipped))
	for _, failure := range result.Skipped {
		skipped = append(skipped, failure.Error())
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{"benchmarks": benchmarks, "skipped": skipped})
}
