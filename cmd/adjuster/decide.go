package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/dataset"
	"github.com/linnemanlabs/adjuster/internal/rules"
	"github.com/linnemanlabs/adjuster/internal/triage"
	"github.com/linnemanlabs/adjuster/internal/triage/memstore"
)

func (c *cli) decideCmd() *cobra.Command {
	var (
		provider string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "decide <claims-file>",
		Short: "Decide each claim with one provider and print the records as JSON lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			e, err := c.load(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			claims, err := dataset.LoadClaims(args[0], dataset.WithLimit(limit))
			if err != nil {
				return fmt.Errorf("load claims: %w", err)
			}

			svc := triage.NewService(memstore.New(), c.logger, triage.WithAuditSink(e.Sink))
			for _, p := range e.Candidates {
				svc.Register(p.Name, p.Decider)
			}

			enc := json.NewEncoder(c.out)
			failures := 0
			for i := range claims {
				if ctx.Err() != nil {
					break
				}
				rec, err := svc.Decide(ctx, provider, &claims[i])
				var nf *claim.NotFoundError
				if errors.As(err, &nf) && nf.Kind == "provider" {
					return err
				}
				if err != nil {
					failures++
					_ = enc.Encode(map[string]string{"claim_id": claims[i].ID, "error": err.Error()})
					continue
				}
				if err := enc.Encode(rec); err != nil {
					return err
				}
			}
			if failures > 0 {
				return fmt.Errorf("%d of %d claims failed", failures, len(claims))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", rules.ProviderName, "provider to decide with")
	cmd.Flags().IntVar(&limit, "limit", 0, "decide only the first N claims (0 = all)")
	return cmd
}
