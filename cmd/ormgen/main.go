// Package main is the ormgen CLI driver. It is deliberately thin: flag
// parsing and wiring only, no core logic of its own (spec §1 Non-goals).
//
// Both subcommands need the caller's own record types in hand to build an
// *inspect.Result — something a prebuilt binary cannot import. Each project
// is expected to write a few lines of its own main package that imports its
// models alongside ormgen's internal packages, the same way Go code
// generators in this space (stringer, mockgen, sqlc) are invoked via
// `go generate` from inside the consuming module rather than as a
// model-agnostic prebuilt tool. This driver still owns the flag parsing of
// both subcommands and a stdin rebuild-confirmation prompt for push.
//
// Grounded on cmd/smf/main.go's root command + subcommand-per-verb shape,
// built with the same github.com/spf13/cobra the teacher uses.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ormgen/internal/push"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ormgen",
		Short: "Type-safe client generator and schema pusher",
	}

	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(pushCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func generateCmd() *cobra.Command {
	var outFile, pkgName, modelsImportPath, modelsAlias string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the typed client module from a project's inspected models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf(
				"generate: call inspect.Inspect(...) on your own record types, then codegen.Generate(result, codegen.Options{PackageName: %q, ModelsImportPath: %q, ModelsPackageAlias: %q}) and write the result to %q from your own go:generate entry point",
				pkgName, modelsImportPath, modelsAlias, outFile)
		},
	}
	cmd.Flags().StringVar(&outFile, "out", "client_gen.go", "output file path")
	cmd.Flags().StringVar(&pkgName, "package", "client", "generated package name")
	cmd.Flags().StringVar(&modelsImportPath, "models-import", "", "import path of the package declaring the record types")
	cmd.Flags().StringVar(&modelsAlias, "models-alias", "models", "local alias for --models-import")
	return cmd
}

func pushCmd() *cobra.Command {
	var dsPath, dsKey string
	var syncIndexes, yes bool

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the declared schema to the configured datasource, rebuilding tables when required",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf(
				"push: call inspect.Inspect(...) on your own record types, open the %q datasource named in %q, then call push.Push(ctx, db, result, push.Options{SyncIndexes: %v, ConfirmRebuild: confirmRebuildPrompt(%v)}) from your own entry point",
				dsKey, dsPath, syncIndexes, yes)
		},
	}
	cmd.Flags().StringVar(&dsPath, "config", "ormgen.toml", "datasource config file")
	cmd.Flags().StringVar(&dsKey, "datasource", "default", "datasource key to push")
	cmd.Flags().BoolVar(&syncIndexes, "sync-indexes", false, "drop live indexes no longer declared")
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm rebuilds without an interactive prompt")
	return cmd
}

// confirmRebuildPrompt is the push.ConfirmRebuildFunc a project's own entry
// point can pass straight through: it prompts on stdin unless yes is set,
// the same SkipConfirmation idiom internal/apply.Applier uses for
// destructive steps.
func confirmRebuildPrompt(yes bool) push.ConfirmRebuildFunc {
	return func(tableName string, reasons []string) bool {
		if yes {
			return true
		}
		fmt.Printf("Table %q requires a rebuild:\n", tableName)
		for _, r := range reasons {
			fmt.Printf("  - %s\n", r)
		}
		fmt.Print("Proceed? [y/N] ")
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
	}
}
