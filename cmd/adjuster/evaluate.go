package main

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/adjuster/internal/dataset"
	"github.com/linnemanlabs/adjuster/internal/eval"
	"github.com/linnemanlabs/adjuster/internal/providers"
)

func (c *cli) evaluateCmd() *cobra.Command {
	var (
		claimsPath string
		names      []string
		limit      int
		workers    int
		timeout    time.Duration
		output     string
		format     string
		entries    bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Compare decision providers against labelled claims",
		Long: "Runs every selected provider over the labelled claims, prints accuracy,\n" +
			"macro F1, and confusion matrices, and marks the best provider by composite score.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if format != "text" && format != "json" {
				return fmt.Errorf("invalid --format %q (text|json)", format)
			}

			e, err := c.load(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			claims, err := dataset.LoadClaims(claimsPath, dataset.WithLimit(limit))
			if err != nil {
				return fmt.Errorf("load claims: %w", err)
			}

			cands, unknown := providers.Select(e.Candidates, names)
			if len(unknown) > 0 {
				return fmt.Errorf("unknown or unconfigured providers: %s", strings.Join(unknown, ", "))
			}

			ev := eval.NewEvaluator(c.logger,
				eval.WithWorkers(workers),
				eval.WithClaimTimeout(timeout),
				eval.WithAuditSink(e.Sink),
			)
			report, err := ev.Compare(ctx, cands, claims)
			if err != nil {
				return err
			}

			if format == "json" {
				err = eval.FormatJSON(c.out, report, entries)
			} else {
				err = eval.FormatText(c.out, report)
			}
			if err != nil {
				return err
			}

			if output != "" {
				var buf bytes.Buffer
				if err := eval.FormatJSON(&buf, report, true); err != nil {
					return err
				}
				if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil { //nolint:gosec // results file is meant to be shared
					return fmt.Errorf("write results: %w", err)
				}
				fmt.Fprintf(c.out, "\nResults written to %s\n", output)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&claimsPath, "claims", "data/claims.csv", "labelled claims file (.csv or .json)")
	f.StringSliceVar(&names, "providers", nil, "providers to evaluate (default: all configured)")
	f.IntVar(&limit, "limit", 0, "evaluate only the first N claims (0 = all)")
	f.IntVar(&workers, "workers", 1, "claims evaluated concurrently per provider")
	f.DurationVar(&timeout, "timeout", 0, "per-claim decision timeout (0 = none)")
	f.StringVarP(&output, "output", "o", "", "also write the full JSON report, with per-claim entries, to this file")
	f.StringVarP(&format, "format", "f", "text", "output format (text|json)")
	f.BoolVar(&entries, "entries", false, "include per-claim entries in JSON output")
	return cmd
}
