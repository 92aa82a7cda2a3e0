package eval

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/linnemanlabs/adjuster/internal/claim"
)

// FormatJSON writes r as indented JSON. Per-claim entries are included only when withEntries is set.
func FormatJSON(w io.Writer, r *Report, withEntries bool) error {
	out := *r
	if !withEntries {
		out.Providers = make([]*ProviderReport, len(r.Providers))
		for i, p := range r.Providers {
			cp := *p
			cp.Entries = nil
			out.Providers[i] = &cp
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// FormatText writes the comparison table, the best provider marker, and one
// confusion matrix per provider and label space.
func FormatText(w io.Writer, r *Report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Evaluated %d claims at %s\n\n", r.Claims, r.GeneratedAt.Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintln(tw, "PROVIDER\tSEVERITY ACC\tACTION ACC\tSEVERITY F1\tACTION F1\tCOMPOSITE\tMEAN TIME\tFAILURES\tSKIPPED\t")

	for _, name := range r.Ranking {
		p := r.Provider(name)
		if p == nil {
			continue
		}
		marker := ""
		if name == r.Best {
			marker = "* best"
		}
		fmt.Fprintf(tw, "%s\t%.2f%%\t%.2f%%\t%.3f\t%.3f\t%.2f%%\t%.3fs\t%d\t%d\t%s\n",
			p.Provider,
			100*p.Severity.Accuracy,
			100*p.Action.Accuracy,
			p.Severity.MacroF1,
			p.Action.MacroF1,
			100*p.Composite,
			p.MeanProcessingTime,
			p.Failures,
			p.Skipped,
			marker,
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, p := range r.Providers {
		if err := writeConfusion(w, p.Provider+" severity", claim.Severities(), p.Severity.Confusion); err != nil {
			return err
		}
		if err := writeConfusion(w, p.Provider+" action", claim.Actions(), p.Action.Confusion); err != nil {
			return err
		}
	}
	return nil
}

func writeConfusion[L ~string](w io.Writer, title string, space []L, m map[string]map[string]int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "\n%s (rows: truth, columns: predicted)\n", title)
	fmt.Fprint(tw, "\t")
	for _, p := range space {
		fmt.Fprintf(tw, "%s\t", p)
	}
	fmt.Fprintln(tw)
	for _, t := range space {
		fmt.Fprintf(tw, "%s\t", t)
		for _, p := range space {
			fmt.Fprintf(tw, "%d\t", m[string(t)][string(p)])
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
