// Package screener handles one incoming event end to end: policy selection,
// evaluation and dispatch.
package screener

import (
	"context"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
)

// Evaluator produces a verdict for an event under a policy.
type Evaluator interface {
	Evaluate(ctx context.Context, ev domain.IncomingEvent, policy domain.PolicyConfiguration) domain.Verdict
}

// Dispatcher runs the follow-up actions of a verdict.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.IncomingEvent, v domain.Verdict, policy domain.PolicyConfiguration) error
	RecordOutbound(ctx context.Context, ev domain.IncomingEvent) error
}

// PolicySource resolves the policy switches of a channel.
type PolicySource interface {
	Policy(kind domain.EventKind) domain.PolicyConfiguration
}

type Screener struct {
	evaluator  Evaluator
	dispatcher Dispatcher
	policies   PolicySource
	logger     log.Logger
}

type Options struct {
	Evaluator  Evaluator
	Dispatcher Dispatcher
	Policies   PolicySource
	Logger     log.Logger
}

func New(opts Options) *Screener {
	s := &Screener{
		evaluator:  opts.Evaluator,
		dispatcher: opts.Dispatcher,
		policies:   opts.Policies,
		logger:     opts.Logger,
	}
	if s.logger == nil {
		s.logger = log.NewNoopLogger()
	}
	s.logger = s.logger.Named("screener")
	return s
}

// Check evaluates ev under its channel policy without dispatching.
func (s *Screener) Check(ctx context.Context, ev domain.IncomingEvent) domain.Verdict {
	return s.evaluator.Evaluate(ctx, ev, s.policy(ev.Kind))
}

// HandleEvent evaluates ev and dispatches the verdict. Dispatch failures are
// logged and never change the verdict. Outbound events are never screened;
// they only feed the message history and are always allowed.
func (s *Screener) HandleEvent(ctx context.Context, ev domain.IncomingEvent) domain.Verdict {
	if ev.Direction == domain.DirectionOut {
		return s.recordOutbound(ctx, ev)
	}
	policy := s.policy(ev.Kind)
	v := s.evaluator.Evaluate(ctx, ev, policy)
	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, ev, v, policy); err != nil {
			s.logger.Warn(map[string]any{"kind": ev.Kind.String(), "number": v.Number, "error": err}, "dispatch_incomplete")
		}
	}
	if v.IsBlocked() {
		s.logger.Info(map[string]any{
			"kind":   ev.Kind.String(),
			"number": v.Number,
			"name":   v.MatchedName,
			"reason": v.Reason.String(),
		}, "event_blocked")
	}
	return v
}

func (s *Screener) recordOutbound(ctx context.Context, ev domain.IncomingEvent) domain.Verdict {
	v := domain.Allow(phone.Normalize(ev.Origin))
	if s.dispatcher == nil {
		return v
	}
	if err := s.dispatcher.RecordOutbound(ctx, ev); err != nil {
		s.logger.Warn(map[string]any{"kind": ev.Kind.String(), "number": v.Number, "error": err}, "outbound_not_recorded")
	}
	return v
}

func (s *Screener) policy(kind domain.EventKind) domain.PolicyConfiguration {
	if s.policies == nil {
		return domain.Policy{}
	}
	if p := s.policies.Policy(kind); p != nil {
		return p
	}
	return domain.Policy{}
}
