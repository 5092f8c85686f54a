// Command hermes is the batch CLI that drives the agent orchestration
// pipeline over a catalog and a batch of customer emails, per spec.md §6.
// Wired with github.com/spf13/cobra the way C360Studio-semspec's
// cmd/semspec/main.go builds its root command: flags bound to local vars,
// signal.NotifyContext for graceful interrupt handling, RunE delegating to
// the package that does the actual work.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hermesflow/hermes/internal/cli"
)

func main() {
	os.Exit(run())
}

func run() int {
	var opts cli.Options

	rootCmd := &cobra.Command{
		Use:   "hermes",
		Short: "Agent orchestration pipeline for customer-service email processing",
	}

	runCmd := &cobra.Command{
		Use:   "run <products_source> <emails_source>",
		Short: "Process a batch of customer emails against a product catalog",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ProductsSource = args[0]
			opts.EmailsSource = args[1]
			return cli.Run(cmd.Context(), opts)
		},
	}

	runCmd.Flags().StringVar(&opts.OutputGSheetID, "output-gsheet-id", "", "Output spreadsheet id (external I/O adapter; unimplemented here)")
	runCmd.Flags().StringVar(&opts.OutDir, "out-dir", "./output", "Directory for CSV and per-email YAML output")
	runCmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of emails to process (0 = unlimited)")
	runCmd.Flags().StringSliceVar(&opts.EmailIDs, "email-id", nil, "Process only these email ids (repeatable, comma-separated)")
	runCmd.Flags().BoolVar(&opts.StopOnError, "stop-on-error", false, "Abort enqueueing further emails after any node error")
	runCmd.Flags().StringVar(&opts.LLMFixturesDir, "llm-fixtures-dir", "", "Directory of deterministic LLM response fixtures (see internal/llm.StaticClient); omit to run with no backend configured")

	rootCmd.AddCommand(runCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if ctx.Err() != nil {
			return 130
		}
		return cli.ExitCode(err)
	}
	return 0
}
