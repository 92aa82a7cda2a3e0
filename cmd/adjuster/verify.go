package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/adjuster/internal/audit"
)

type auditStats struct {
	Entries      int                     `json:"entries"`
	ByType       map[audit.EntryType]int `json:"by_type"`
	ToolCalls    audit.ToolCallStats     `json:"tool_calls"`
	OverrideRate float64                 `json:"override_rate"`
}

func (c *cli) verifyAuditCmd() *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "verify-audit [path]",
		Short: "Verify the hash chain of an audit log",
		Long:  "Verifies the audit log given as argument, or --audit-log when omitted.\nExits non-zero when the chain is broken.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := c.appCfg.AuditLogPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no audit log path given")
			}

			res := audit.Verify(path)
			out := map[string]any{"path": path, "verify": res}

			if stats && res.Valid {
				s, err := summarize(path)
				if err != nil {
					return err
				}
				out["stats"] = s
			}

			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !res.Valid {
				if res.ErrorLine == 0 {
					return fmt.Errorf("audit log %s: %s", path, strings.TrimSpace(res.Error))
				}
				return fmt.Errorf("audit chain broken at line %d: %s", res.ErrorLine, strings.TrimSpace(res.Error))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "also report entry counts, tool call stats, and the override rate")
	return cmd
}

func summarize(path string) (*auditStats, error) {
	entries, err := audit.ReadFile(path)
	if err != nil {
		return nil, err
	}
	mem := audit.NewMemory()
	s := &auditStats{Entries: len(entries), ByType: map[audit.EntryType]int{}}
	for _, e := range entries {
		_ = mem.Append(context.Background(), e)
		s.ByType[e.Type]++
	}
	s.ToolCalls = mem.ToolCallStats()
	s.OverrideRate = mem.OverrideRate()
	return s, nil
}
