// Package filter implements the ordered blocking rule chain.
package filter

import (
	"context"
	"fmt"
	"time"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/metrics"
)

// DefaultLookupTimeout bounds a single address book or history lookup.
const DefaultLookupTimeout = 200 * time.Millisecond

// Capability labels used in logs and metrics.
const (
	capabilityAddressBook = "address_book"
	capabilitySMSHistory  = "sms_history"
)

// Engine evaluates incoming events against the contact lists and a policy.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	contacts      ContactFinder
	addressBook   AddressBook
	history       MessageHistory
	normalizer    *phone.Normalizer
	logger        log.Logger
	lookupTimeout time.Duration
}

// EngineOptions configures NewEngine. Contacts is required. A nil AddressBook
// or History makes the dependent rule inapplicable.
type EngineOptions struct {
	Contacts      ContactFinder
	AddressBook   AddressBook
	History       MessageHistory
	Normalizer    *phone.Normalizer
	Logger        log.Logger
	LookupTimeout time.Duration
}

func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Contacts == nil {
		return nil, fmt.Errorf("filter engine requires a contact finder")
	}
	e := &Engine{
		contacts:      opts.Contacts,
		addressBook:   opts.AddressBook,
		history:       opts.History,
		normalizer:    opts.Normalizer,
		logger:        opts.Logger,
		lookupTimeout: opts.LookupTimeout,
	}
	if e.normalizer == nil {
		e.normalizer = phone.MustNormalizer(phone.DefaultPrivatePattern)
	}
	if e.logger == nil {
		e.logger = log.NewNoopLogger()
	}
	e.logger = e.logger.Named("filter")
	if e.lookupTimeout <= 0 {
		e.lookupTimeout = DefaultLookupTimeout
	}
	return e, nil
}

// Evaluate runs the rule chain for ev under policy. The first decisive rule
// wins. It always returns a verdict; failures of the contact store or of a
// capability make the affected rule fail open.
func (e *Engine) Evaluate(ctx context.Context, ev domain.IncomingEvent, policy domain.PolicyConfiguration) (v domain.Verdict) {
	start := time.Now()
	channel := ev.Kind.String()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(map[string]any{"panic": fmt.Sprint(r), "channel": channel}, "evaluate_panic")
			v = domain.Allow(v.Number)
		}
		metrics.FilterVerdicts.WithLabelValues(channel, v.Reason.String()).Inc()
		metrics.FilterEvaluationLatency.WithLabelValues(channel).Observe(time.Since(start).Seconds())
		e.logger.Debug(map[string]any{
			"channel": channel,
			"number":  v.Number,
			"blocked": v.Blocked,
			"reason":  v.Reason.String(),
		}, "verdict")
	}()
	if policy == nil {
		policy = domain.Policy{}
	}
	return e.evaluate(ctx, ev, policy)
}

func (e *Engine) evaluate(ctx context.Context, ev domain.IncomingEvent, policy domain.PolicyConfiguration) domain.Verdict {
	// 1. withheld origin
	if e.normalizer.IsPrivateNumber(ev.Origin) {
		if policy.Bool(domain.SwitchBlockPrivate) || policy.Bool(domain.SwitchBlockAll) {
			return domain.Block(domain.ReasonPrivateNumber, domain.PrivateNumberName, "")
		}
		return domain.Allow("")
	}

	// 2. nothing to match against
	number := e.normalizer.Normalize(ev.Origin)
	if number == "" {
		return domain.Allow("")
	}

	// 3. white list overrides every blocking rule
	entries, err := e.contacts.FindByNumber(number)
	if err != nil {
		e.logger.Warn(map[string]any{"number": number, "error": err}, "contact_lookup_failed")
		return domain.Allow(number)
	}
	if _, ok := domain.FindByList(entries, domain.ListWhite); ok {
		return domain.Allow(number)
	}
	black, listed := domain.FindByList(entries, domain.ListBlack)
	name := number
	if listed && black.Name != "" {
		name = black.Name
	}

	// 4. everything not white-listed
	if policy.Bool(domain.SwitchBlockAll) {
		return domain.Block(domain.ReasonBlockAll, name, number)
	}

	// 5. black list
	if listed && policy.Bool(domain.SwitchBlockFromBlackList) {
		return domain.Block(domain.ReasonBlackList, name, number)
	}

	// 6. unknown to the address book
	if policy.Bool(domain.SwitchBlockNotFromContacts) {
		switch e.queryCapability(ctx, capabilityAddressBook, number, e.addressBookLookup()) {
		case domain.PresenceAbsent:
			return domain.Block(domain.ReasonNotInContacts, number, number)
		case domain.PresencePresent:
			return domain.Allow(number)
		}
	}

	// 7. never messaged before
	if policy.Bool(domain.SwitchBlockNotFromSMSHistory) {
		switch e.queryCapability(ctx, capabilitySMSHistory, number, e.historyLookup()) {
		case domain.PresenceAbsent:
			return domain.Block(domain.ReasonNotInSMSHistory, number, number)
		case domain.PresencePresent:
			return domain.Allow(number)
		}
	}

	return domain.Allow(number)
}

type lookupFunc func(ctx context.Context, number string) domain.Presence

func (e *Engine) addressBookLookup() lookupFunc {
	if e.addressBook == nil {
		return nil
	}
	return e.addressBook.Contains
}

func (e *Engine) historyLookup() lookupFunc {
	if e.history == nil {
		return nil
	}
	return e.history.ContainsNumber
}

// queryCapability runs one capability lookup bounded by the lookup timeout. A missing
// capability, a timeout, a cancelled ctx or a panic all answer PresenceUnknown.
func (e *Engine) queryCapability(ctx context.Context, capability, number string, fn lookupFunc) domain.Presence {
	p := domain.PresenceUnknown
	if fn != nil {
		p = e.runLookup(ctx, number, fn)
	}
	if p == domain.PresenceUnknown {
		metrics.FilterCapabilityUnknown.WithLabelValues(capability).Inc()
		e.logger.Debug(map[string]any{"capability": capability, "number": number}, "capability_unknown")
	}
	return p
}

func (e *Engine) runLookup(ctx context.Context, number string, fn lookupFunc) domain.Presence {
	ctx, cancel := context.WithTimeout(ctx, e.lookupTimeout)
	defer cancel()

	// buffered so an abandoned lookup can still finish
	ch := make(chan domain.Presence, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- domain.PresenceUnknown
			}
		}()
		ch <- fn(ctx, number)
	}()
	select {
	case p := <-ch:
		return p
	case <-ctx.Done():
		return domain.PresenceUnknown
	}
}
