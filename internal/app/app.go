// Package app assembles the decision stack shared by the server and the CLI:
// tuning, the policy directory, audit sinks, the optional LLM transport, and
// the decision providers built on them.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/adjuster/internal/agent"
	"github.com/linnemanlabs/adjuster/internal/audit"
	"github.com/linnemanlabs/adjuster/internal/audit/kafkasink"
	ac "github.com/linnemanlabs/adjuster/internal/cfg"
	"github.com/linnemanlabs/adjuster/internal/dataset"
	"github.com/linnemanlabs/adjuster/internal/eval"
	"github.com/linnemanlabs/adjuster/internal/llm/claude"
	"github.com/linnemanlabs/adjuster/internal/policy"
	"github.com/linnemanlabs/adjuster/internal/providers"
)

// Stack is the loaded decision stack. Close releases the audit sinks.
type Stack struct {
	Tuning     ac.Tuning
	Policies   *policy.Directory
	Sink       audit.Sink
	LLM        agent.Provider // nil without a Claude key
	Candidates []eval.Candidate

	closers []io.Closer
}

// Option adjusts Load.
type Option func(*loadOptions)

type loadOptions struct {
	hooks agent.EngineHooks
	llm   agent.Provider
}

// WithHooks passes engine hooks (metrics) to the LLM providers.
func WithHooks(h agent.EngineHooks) Option {
	return func(o *loadOptions) { o.hooks = h }
}

// WithLLM uses p instead of a Claude client built from the config.
func WithLLM(p agent.Provider) Option {
	return func(o *loadOptions) { o.llm = p }
}

// Load reads the tuning and policy files named by c, opens the audit sinks,
// and builds the providers. On error nothing stays open.
func Load(ctx context.Context, c *ac.Config, logger log.Logger, opts ...Option) (_ *Stack, err error) {
	if logger == nil {
		logger = log.Nop()
	}
	var o loadOptions
	for _, fn := range opts {
		fn(&o)
	}

	s := &Stack{}
	defer func() {
		if err != nil {
			_ = s.Close()
		}
	}()

	if s.Tuning, err = ac.LoadTuning(c.TuningPath); err != nil {
		return nil, err
	}
	list, err := dataset.LoadPolicies(c.PoliciesPath)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	if s.Policies, err = policy.NewDirectory(list); err != nil {
		return nil, fmt.Errorf("policy directory: %w", err)
	}
	logger.Info(ctx, "loaded policies", "count", s.Policies.Len(), "path", c.PoliciesPath)

	var sinks []audit.Sink
	if c.AuditLogPath != "" {
		f, err := audit.Open(c.AuditLogPath)
		if err != nil {
			return nil, fmt.Errorf("audit log: %w", err)
		}
		s.closers = append(s.closers, f)
		sinks = append(sinks, f)
		logger.Info(ctx, "audit log enabled", "path", f.Path())
	}
	if brokers := c.Brokers(); len(brokers) > 0 {
		k := kafkasink.New(brokers, c.KafkaTopic)
		s.closers = append(s.closers, k)
		sinks = append(sinks, k)
		logger.Info(ctx, "audit stream enabled", "brokers", brokers, "topic", c.KafkaTopic)
	}
	s.Sink = audit.Tee(sinks...)

	switch {
	case o.llm != nil:
		s.LLM = o.llm
	case c.ClaudeAPIKey != "":
		s.LLM = claude.New(c.ClaudeAPIKey, c.ClaudeModel)
		logger.Info(ctx, "initialized LLM provider", "provider", "claude", "model", c.ClaudeModel)
	default:
		logger.Warn(ctx, "no claude-api-key configured, LLM providers disabled")
	}

	s.Candidates = providers.Build(providers.Deps{
		Policies:      s.Policies,
		Tuning:        s.Tuning,
		LLM:           s.LLM,
		Sink:          s.Sink,
		Logger:        logger,
		Hooks:         o.hooks,
		MaxToolRounds: c.AgentMaxToolRounds,
	})
	return s, nil
}

// Close closes the audit sinks in reverse open order.
func (s *Stack) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i].Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}
