// Package dispatch runs the follow-up actions of a verdict: journaling,
// notification, and message-history bookkeeping.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/haukened/callguard/internal/guard/common/clock"
	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/common/phone"
	"github.com/haukened/callguard/internal/guard/domain"
	"github.com/haukened/callguard/internal/guard/metrics"
)

// Dispatch stages, used as metric labels.
const (
	StageJournal = "journal"
	StageNotify  = "notify"
	StageHistory = "history"
)

// JournalWriter persists blocked events.
type JournalWriter interface {
	RecordBlocked(entry domain.JournalEntry) error
}

// HistoryRecorder remembers numbers that delivered an allowed message.
type HistoryRecorder interface {
	RecordMessage(number string, at time.Time) error
}

// Notifier tells the user about a blocked event.
type Notifier interface {
	NotifyBlocked(ctx context.Context, entry domain.JournalEntry) error
}

type Dispatcher struct {
	journal  JournalWriter
	history  HistoryRecorder
	notifier Notifier
	clock    clock.Clock
	newID    func() string
	logger   log.Logger
}

// Options configures New. Nil collaborators disable their stage.
type Options struct {
	Journal  JournalWriter
	History  HistoryRecorder
	Notifier Notifier
	Clock    clock.Clock
	NewID    func() string
	Logger   log.Logger
}

func New(opts Options) *Dispatcher {
	d := &Dispatcher{
		journal:  opts.Journal,
		history:  opts.History,
		notifier: opts.Notifier,
		clock:    opts.Clock,
		newID:    opts.NewID,
		logger:   opts.Logger,
	}
	if d.clock == nil {
		d.clock = clock.RealClock{}
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if d.logger == nil {
		d.logger = log.NewNoopLogger()
	}
	d.logger = d.logger.Named("dispatch")
	return d
}

// Dispatch performs the actions v calls for. Blocked events are journaled when
// WRITE_JOURNAL is on and notified when BLOCKED_STATUS_NOTIFICATION is on.
// Allowed messages with a number are added to the message history. Every stage
// runs even if an earlier one fails; the failures are combined.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.IncomingEvent, v domain.Verdict, policy domain.PolicyConfiguration) error {
	if policy == nil {
		policy = domain.Policy{}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.clock.Now().UTC()
	}

	if !v.IsBlocked() {
		if ev.Kind != domain.EventSMS || v.Number == "" || d.history == nil {
			return nil
		}
		if err := d.history.RecordMessage(v.Number, ev.Timestamp); err != nil {
			return d.fail(StageHistory, v, err)
		}
		return nil
	}

	entry := domain.NewJournalEntry(d.newID(), ev, v)
	var errs error
	if policy.Bool(domain.SwitchWriteJournal) && d.journal != nil {
		if err := d.journal.RecordBlocked(entry); err != nil {
			errs = multierr.Append(errs, d.fail(StageJournal, v, err))
		}
	}
	if policy.Bool(domain.SwitchBlockedStatusNotification) && d.notifier != nil {
		if err := d.notifier.NotifyBlocked(ctx, entry); err != nil {
			errs = multierr.Append(errs, d.fail(StageNotify, v, err))
		}
	}
	return errs
}

// RecordOutbound adds the recipient of a message the user sent to the message
// history. Calls, withheld numbers and a missing history are ignored.
func (d *Dispatcher) RecordOutbound(_ context.Context, ev domain.IncomingEvent) error {
	if ev.Kind != domain.EventSMS || d.history == nil {
		return nil
	}
	number := phone.Normalize(ev.Origin)
	if number == "" {
		return nil
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = d.clock.Now().UTC()
	}
	if err := d.history.RecordMessage(number, ev.Timestamp); err != nil {
		return d.fail(StageHistory, domain.Allow(number), err)
	}
	return nil
}

func (d *Dispatcher) fail(stage string, v domain.Verdict, err error) error {
	metrics.DispatchErrors.WithLabelValues(stage).Inc()
	d.logger.Error(map[string]any{"stage": stage, "number": v.Number, "error": err}, "dispatch_failed")
	return fmt.Errorf("%s: %w", stage, err)
}

// LogNotifier reports blocked events through the logger.
type LogNotifier struct {
	Logger log.Logger
}

func (n LogNotifier) NotifyBlocked(_ context.Context, e domain.JournalEntry) error {
	l := n.Logger
	if l == nil {
		l = log.GetLogger()
	}
	l.Info(map[string]any{
		"kind":   e.Kind,
		"number": e.Number,
		"name":   e.Name,
		"reason": e.Reason,
	}, "blocked")
	return nil
}
