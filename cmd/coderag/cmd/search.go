package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/coderag/engine/internal/config"
	"github.com/coderag/engine/internal/ragquery"
)

type searchOptions struct {
	limit            int
	language         string
	repository       string
	currentFile      string
	intent           string
	detail           string
	bm25Only         bool
	disableCache     bool
	includeTimings   bool
	format           string
	localBackend     bool
	localDim         int
	configDir        string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Run a single query against the retrieval pipeline",
		Long: `Classify, retrieve, and rank results for a single query, printing
them to stdout. Intended for terminal use and scripting; editor
integrations should use 'coderag serve' instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Current file language, used for context overlap")
	cmd.Flags().StringVarP(&opts.repository, "repository", "r", "", "Restrict results to one repository")
	cmd.Flags().StringVar(&opts.currentFile, "current-file", "", "Current file path, used for proximity and context overlap")
	cmd.Flags().StringVar(&opts.intent, "intent", "", "Force a query intent instead of classifying")
	cmd.Flags().StringVar(&opts.detail, "detail", "full", "Result detail level: full, compact, ultra")
	cmd.Flags().BoolVar(&opts.bm25Only, "bm25-only", false, "Use keyword search only, skipping vector/semantic strategies")
	cmd.Flags().BoolVar(&opts.disableCache, "no-cache", false, "Bypass the result cache")
	cmd.Flags().BoolVar(&opts.includeTimings, "timings", false, "Include per-stage timing breakdown")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.localBackend, "local-backend", false, "Use the in-process reference backend instead of an external HTTP backend")
	cmd.Flags().IntVar(&opts.localDim, "local-dimension", 1536, "Vector dimension for --local-backend")
	cmd.Flags().StringVar(&opts.configDir, "config-dir", ".", "Directory to resolve project configuration from")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dim := 0
	if opts.localBackend {
		dim = opts.localDim
	}
	eng, err := buildEngine(cfg, dim, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	q := ragquery.Query{
		Text:                query,
		CurrentFile:         opts.currentFile,
		CurrentLanguage:     opts.language,
		RepositoryFilter:    opts.repository,
		ExplicitIntent:      ragquery.Intent(opts.intent),
		MaxResults:          opts.limit,
		Detail:              ragquery.DetailLevel(opts.detail),
		BM25Only:            opts.bm25Only,
		DisableCache:        opts.disableCache,
		IncludeTimings:      opts.includeTimings,
	}

	resp, err := eng.coordinator.Search(ctx, q)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	if resp.Reason == "no_results" {
		fmt.Fprintln(out, "no results")
		return nil
	}

	for i, rr := range resp.Results {
		r := rr.Result
		fmt.Fprintf(out, "%d. [%.3f] %s:%d-%d", i+1, rr.Score, r.FilePath, r.StartLine, r.EndLine)
		if r.FunctionName != "" {
			fmt.Fprintf(out, " (%s)", r.FunctionName)
		}
		fmt.Fprintln(out)
		if explanation, ok := resp.Explanations[r.ID]; ok {
			fmt.Fprintf(out, "   %s\n", explanation)
		}
	}
	if resp.Timings != nil {
		fmt.Fprintf(out, "\nclassify=%.1fms enhance=%.1fms retrieve=%.1fms rank=%.1fms total=%.1fms\n",
			resp.Timings.ClassifyMS, resp.Timings.EnhanceMS, resp.Timings.RetrieveMS, resp.Timings.RankMS, resp.Timings.TotalMS)
	}
	return nil
}
