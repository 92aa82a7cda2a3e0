package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/adjuster/internal/claim"
	"github.com/linnemanlabs/adjuster/internal/dataset"
	"github.com/linnemanlabs/adjuster/internal/risk"
)

func (c *cli) scoreCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "score <claims-file>",
		Short: "Print the risk assessment of each claim",
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

			scorer := risk.NewScorer(e.Tuning.Risk)
			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CLAIM\tPOLICY\tSCORE\tLEVEL\tFACTORS\t")
			for i := range claims {
				cl := &claims[i]
				pol, err := e.Policies.Lookup(ctx, cl.PolicyID)
				if errors.Is(err, claim.ErrNotFound) {
					fmt.Fprintf(tw, "%s\t%s\t-\t-\tpolicy not found\t\n", cl.ID, cl.PolicyID)
					continue
				}
				if err != nil {
					return err
				}
				a := scorer.Score(cl, pol)
				factors := strings.Join(a.Factors, ", ")
				if factors == "" {
					factors = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\t%s\t\n", cl.ID, cl.PolicyID, a.Score, a.Level, factors)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "score only the first N claims (0 = all)")
	return cmd
}
