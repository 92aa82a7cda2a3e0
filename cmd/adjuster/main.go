// Command adjuster evaluates and compares claim decision providers offline,
// scores claims, and verifies audit logs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/linnemanlabs/go-core/cfg"
	"github.com/linnemanlabs/go-core/log"
	v "github.com/linnemanlabs/go-core/version"

	"github.com/linnemanlabs/adjuster/internal/app"
	ac "github.com/linnemanlabs/adjuster/internal/cfg"
)

const appName = "adjuster"
const component = "cli"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	v.AppName = appName
	v.Component = component

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// cli carries the shared configuration of every subcommand. Package configs
// register on a go FlagSet, as in the server, which is bridged into cobra.
type cli struct {
	out    io.Writer
	fs     *flag.FlagSet
	appCfg ac.Config
	logCfg log.Config
	logger log.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{
		out: out,
		fs:  flag.NewFlagSet(appName, flag.ContinueOnError),
	}
	c.appCfg.RegisterFlags(c.fs)
	c.logCfg.RegisterFlags(c.fs)

	root := &cobra.Command{
		Use:           appName,
		Short:         "Claim triage decision engine and provider evaluator",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}
	root.SetOut(out)
	root.PersistentFlags().AddGoFlagSet(c.fs)

	root.AddCommand(
		c.evaluateCmd(),
		c.scoreCmd(),
		c.decideCmd(),
		c.verifyAuditCmd(),
		c.versionCmd(),
	)
	return root
}

// setup fills unset flags from ADJUSTER_ environment variables, validates,
// and builds the logger. Flags given on the command line are marked set on
// the go FlagSet first so the environment never overrides them.
func (c *cli) setup(cmd *cobra.Command) error {
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if c.fs.Lookup(f.Name) != nil {
			_ = c.fs.Set(f.Name, f.Value.String())
		}
	})
	cfg.FillFromEnv(c.fs, "ADJUSTER_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := errors.Join(c.appCfg.Validate(), c.logCfg.Validate()); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	lg, err := log.New(c.logCfg.ToOptions(v.AppName))
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	c.logger = lg.With("component", component, "command", cmd.Name())
	cmd.SetContext(log.WithContext(cmd.Context(), c.logger))
	return nil
}

// load assembles the decision stack from the application flags.
func (c *cli) load(ctx context.Context) (*app.Stack, error) {
	st, err := app.Load(ctx, &c.appCfg, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Info(ctx, "decision stack loaded", "providers", len(st.Candidates), "llm", st.LLM != nil)
	return st, nil
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			vi := v.Get()
			fmt.Fprintf(c.out,
				"%s (%s) %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
				vi.AppName, vi.Component, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
				vi.VCSDirty != nil && *vi.VCSDirty,
			)
			return nil
		},
	}
}
