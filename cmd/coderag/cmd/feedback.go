package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/coderag/engine/internal/config"
	"github.com/coderag/engine/internal/ragquery"
)

type feedbackOptions struct {
	fingerprint string
	resultID    string
	rank        int
	outcome     string
	intent      string
	configDir   string
}

func newFeedbackCmd() *cobra.Command {
	var opts feedbackOptions

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Submit a feedback record directly to the sink",
		Long: `Record a single feedback outcome for a prior query's result,
bypassing the MCP submit_feedback tool. The query fingerprint is the
one a prior 'coderag search --format json' call reported.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFeedback(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.fingerprint, "fingerprint", "", "Query fingerprint (required)")
	cmd.Flags().StringVar(&opts.resultID, "result-id", "", "Result ID the feedback applies to (required)")
	cmd.Flags().IntVar(&opts.rank, "rank", 1, "Rank of the result in its result list, 1-indexed")
	cmd.Flags().StringVar(&opts.outcome, "outcome", "", "Outcome: no_click, click, copy, explicit_positive, explicit_negative (required)")
	cmd.Flags().StringVar(&opts.intent, "intent", "", "Intent the originating query was classified as (required)")
	cmd.Flags().StringVar(&opts.configDir, "config-dir", ".", "Directory to resolve project configuration from")

	_ = cmd.MarkFlagRequired("fingerprint")
	_ = cmd.MarkFlagRequired("result-id")
	_ = cmd.MarkFlagRequired("outcome")
	_ = cmd.MarkFlagRequired("intent")

	return cmd
}

func runFeedback(cmd *cobra.Command, opts feedbackOptions) error {
	cfg, err := config.Load(opts.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	eng, err := buildEngine(cfg, 0, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}
	defer func() { _ = eng.Close() }()

	rec := ragquery.FeedbackRecord{
		QueryFingerprint: opts.fingerprint,
		ResultID:         opts.resultID,
		Rank:             opts.rank,
		Outcome:          ragquery.FeedbackOutcome(opts.outcome),
		Timestamp:        time.Now(),
		Intent:           ragquery.Intent(opts.intent),
	}

	if err := eng.feedback.Record(rec); err != nil {
		return fmt.Errorf("feedback rejected: %w", err)
	}
	if err := eng.feedback.Flush(); err != nil {
		return fmt.Errorf("feedback flush failed: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "recorded")
	return nil
}
