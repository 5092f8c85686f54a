// Package cli wires every pipeline component into the one `run` command
// the batch driver exposes, the way the teacher's cmd/server/main.go wires
// config, storage, and the executor into the REST server: load config,
// build the catalog and vector index, construct the five graph nodes over
// a shared retry loop, and drive the batch across the email set, per spec
// §6's CLI contract.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/hermesflow/hermes/internal/advisor"
	"github.com/hermesflow/hermes/internal/batch"
	"github.com/hermesflow/hermes/internal/catalog"
	"github.com/hermesflow/hermes/internal/classifier"
	"github.com/hermesflow/hermes/internal/composer"
	"github.com/hermesflow/hermes/internal/config"
	"github.com/hermesflow/hermes/internal/emailsrc"
	"github.com/hermesflow/hermes/internal/fulfiller"
	"github.com/hermesflow/hermes/internal/graph"
	"github.com/hermesflow/hermes/internal/llm"
	"github.com/hermesflow/hermes/internal/report"
	"github.com/hermesflow/hermes/internal/resolver"
	"github.com/hermesflow/hermes/internal/stockkeeper"
	"github.com/hermesflow/hermes/internal/vectorindex"
)

// Options collects the `run` subcommand's positional arguments and flags
// (spec §6).
type Options struct {
	ProductsSource string
	EmailsSource   string

	OutputGSheetID string
	OutDir         string
	Limit          int
	EmailIDs       []string
	StopOnError    bool

	// LLMFixturesDir points at a directory of StaticClient fixtures (see
	// internal/llm.StaticClient). Empty means no LLM backend is
	// configured: every node call fails over llm.NullClient, exercising
	// the graceful-degradation path end to end.
	LLMFixturesDir string
}

// knownTools is the union of every node's required tool set, used to scope
// the validator's string-scanning fallback (spec §4.2's missing-tool
// extraction heuristic). Kept in sync with each node package's own
// unexported requiredTools.
var knownTools = []string{
	"extract_segments", "extract_product_mentions",
	"draft_order_lines",
	"answer_questions",
	"compose_reply",
}

// Run executes one batch: load configuration and the two CSV sources,
// build the catalog-backed graph, drive the batch, and write the output
// file layout. A non-nil error here is always fatal to the process, per
// the exit-code contract: configuration/catalog load failures and a
// --stop-on-error abort all surface here, the caller maps them to a
// nonzero exit.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cli: loading configuration: %w", err)
	}

	if opts.OutputGSheetID != "" {
		log.Warn().Str("output_gsheet_id", opts.OutputGSheetID).
			Msg("spreadsheet output is an external I/O adapter responsibility (spec §1/§6); writing CSV/YAML to --out-dir only")
	}

	cat, err := catalog.LoadCSV(opts.ProductsSource)
	if err != nil {
		return fmt.Errorf("cli: loading product catalog: %w", err)
	}
	log.Info().Int("products", cat.Len()).Str("source", opts.ProductsSource).Msg("catalog loaded")

	emails, err := emailsrc.LoadCSV(opts.EmailsSource)
	if err != nil {
		return fmt.Errorf("cli: loading emails: %w", err)
	}
	log.Info().Int("emails", len(emails)).Str("source", opts.EmailsSource).Msg("emails loaded")

	index := buildVectorIndex(cat, cfg)

	runner := buildRunner(cfg, cat, index, opts)

	driver := batch.New(runner)
	driver.StopOnError = opts.StopOnError
	driver.Limit = cfg.ProcessingLimit
	if opts.Limit > 0 {
		driver.Limit = opts.Limit
	}
	if len(opts.EmailIDs) > 0 {
		driver.OnlyEmailIDs = make(map[string]struct{}, len(opts.EmailIDs))
		for _, id := range opts.EmailIDs {
			driver.OnlyEmailIDs[id] = struct{}{}
		}
	}

	results, runErr := driver.Run(ctx, emails)

	outDir := opts.OutDir
	if outDir == "" {
		outDir = "./output"
	}
	writer := report.New(outDir)
	if err := writer.WriteAll(results); err != nil {
		return fmt.Errorf("cli: writing output files: %w", err)
	}

	if runErr != nil {
		if aborted, ok := runErr.(*batch.Aborted); ok {
			log.Error().Strs("failed_email_ids", aborted.FailedEmailIDs).
				Msg("batch aborted under --stop-on-error")
			return runErr
		}
		return fmt.Errorf("cli: running batch: %w", runErr)
	}

	return nil
}

// buildVectorIndex populates a fresh in-memory index from every catalog
// product, serialized at process startup per the concurrency model (§5:
// "Population, if needed, is serialized at process startup").
func buildVectorIndex(cat *catalog.Catalog, cfg *config.Config) vectorindex.Index {
	index := vectorindex.NewMemory(cfg.ChromaEmbeddingDim)
	for _, p := range cat.All() {
		text := p.Name + " " + p.Description + " " + p.ProductType
		index.Add(text, map[string]string{
			"product_id": p.ProductID,
			"category":   string(p.Category),
		})
	}
	return index
}

// buildRunner wires the shared retry loop and the five graph nodes.
// Classifier and Fulfiller use the strong model tier (structured
// extraction and order-precision are the highest-stakes calls); Advisor
// and Composer use the weak tier (conversational synthesis from
// already-resolved data), a judgment call recorded in DESIGN.md since the
// spec names only the two tiers, not a per-node assignment.
func buildRunner(cfg *config.Config, cat *catalog.Catalog, index vectorindex.Index, opts Options) *graph.Runner {
	var client llm.Client
	if opts.LLMFixturesDir != "" {
		client = llm.NewStaticClient(opts.LLMFixturesDir)
	} else {
		client = llm.NullClient{}
	}

	validator := llm.NewToolCallValidator(knownTools)
	retrier := llm.NewRetrier(client, validator)

	res := resolver.New(cat, index)

	return graph.NewRunner(graph.Nodes{
		Classifier:  classifier.New(retrier, cfg.LLMStrongModel),
		Stockkeeper: stockkeeper.New(res),
		Fulfiller:   fulfiller.New(retrier, cfg.LLMStrongModel, cat, cfg.PromotionSpecs),
		Advisor:     advisor.New(retrier, cfg.LLMWeakModel),
		Composer:    composer.New(retrier, cfg.LLMWeakModel, cfg.ComposerSignature, cfg.ComposerBrandVoice),
	})
}

// ExitCode maps a Run error to the process exit code per spec §6: 0 on
// success (including non-fatal per-email errors, which never reach here as
// an error at all), nonzero otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
