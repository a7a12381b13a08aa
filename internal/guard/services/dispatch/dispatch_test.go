package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/haukened/callguard/internal/guard/common/clock"
	"github.com/haukened/callguard/internal/guard/domain"
)

type MockJournal struct{ mock.Mock }

func (m *MockJournal) RecordBlocked(e domain.JournalEntry) error { return m.Called(e).Error(0) }

type MockHistory struct{ mock.Mock }

func (m *MockHistory) RecordMessage(number string, at time.Time) error {
	return m.Called(number, at).Error(0)
}

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyBlocked(_ context.Context, e domain.JournalEntry) error {
	return m.Called(e).Error(0)
}

var now = time.Unix(1700000000, 0).UTC()

func newDispatcher(j JournalWriter, h HistoryRecorder, n Notifier) *Dispatcher {
	return New(Options{
		Journal:  j,
		History:  h,
		Notifier: n,
		Clock:    clock.NewMockClock(now),
		NewID:    func() string { return "fixed-id" },
	})
}

func blocked() domain.Verdict {
	return domain.Block(domain.ReasonBlackList, "Spammer", "+15551111")
}

func TestDispatch_BlockedWritesJournalAndNotifies(t *testing.T) {
	j, n := &MockJournal{}, &MockNotifier{}
	want := domain.JournalEntry{ID: "fixed-id", Kind: "sms", Number: "+15551111", Name: "Spammer", Reason: "BLACK_LIST", Body: "win", Time: now}
	j.On("RecordBlocked", want).Return(nil)
	n.On("NotifyBlocked", want).Return(nil)

	d := newDispatcher(j, nil, n)
	ev := domain.IncomingEvent{Kind: domain.EventSMS, Origin: "555-1111", Body: "win"} // no timestamp: clock fills it
	policy := domain.Policy{domain.SwitchWriteJournal: true, domain.SwitchBlockedStatusNotification: true}

	require.NoError(t, d.Dispatch(context.Background(), ev, blocked(), policy))
	j.AssertExpectations(t)
	n.AssertExpectations(t)
}

func TestDispatch_SwitchesOff(t *testing.T) {
	j, n := &MockJournal{}, &MockNotifier{}
	d := newDispatcher(j, nil, n)
	require.NoError(t, d.Dispatch(context.Background(), domain.NewCallEvent("+15551111", now), blocked(), domain.Policy{}))
	j.AssertNotCalled(t, "RecordBlocked", mock.Anything)
	n.AssertNotCalled(t, "NotifyBlocked", mock.Anything)
}

func TestDispatch_PrivateKeepsRawOrigin(t *testing.T) {
	j := &MockJournal{}
	j.On("RecordBlocked", mock.MatchedBy(func(e domain.JournalEntry) bool {
		return e.Number == "-2" && e.Name == domain.PrivateNumberName && e.Kind == "call"
	})).Return(nil)
	d := newDispatcher(j, nil, nil)
	v := domain.Block(domain.ReasonPrivateNumber, domain.PrivateNumberName, "")
	require.NoError(t, d.Dispatch(context.Background(), domain.NewCallEvent("-2", now), v, domain.Policy{domain.SwitchWriteJournal: true}))
	j.AssertExpectations(t)
}

func TestDispatch_FailuresAreCombined(t *testing.T) {
	j, n := &MockJournal{}, &MockNotifier{}
	errJournal, errNotify := errors.New("disk full"), errors.New("no display")
	j.On("RecordBlocked", mock.Anything).Return(errJournal)
	n.On("NotifyBlocked", mock.Anything).Return(errNotify)

	d := newDispatcher(j, nil, n)
	policy := domain.Policy{domain.SwitchWriteJournal: true, domain.SwitchBlockedStatusNotification: true}
	err := d.Dispatch(context.Background(), domain.NewSMSEvent("+15551111", "x", now), blocked(), policy)
	require.Error(t, err)
	assert.ErrorIs(t, err, errJournal)
	assert.ErrorIs(t, err, errNotify)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestDispatch_AllowedSMSRecordsHistory(t *testing.T) {
	h := &MockHistory{}
	h.On("RecordMessage", "+15552222", now).Return(nil)
	d := newDispatcher(nil, h, nil)

	require.NoError(t, d.Dispatch(context.Background(), domain.NewSMSEvent("+15552222", "hi", now), domain.Allow("+15552222"), nil))
	h.AssertExpectations(t)

	// calls and numberless verdicts leave the history alone
	require.NoError(t, d.Dispatch(context.Background(), domain.NewCallEvent("+15553333", now), domain.Allow("+15553333"), nil))
	require.NoError(t, d.Dispatch(context.Background(), domain.NewSMSEvent("", "hi", now), domain.Allow(""), nil))
	h.AssertNumberOfCalls(t, "RecordMessage", 1)
}

func TestDispatch_HistoryError(t *testing.T) {
	h := &MockHistory{}
	h.On("RecordMessage", mock.Anything, mock.Anything).Return(errors.New("closed"))
	d := newDispatcher(nil, h, nil)
	err := d.Dispatch(context.Background(), domain.NewSMSEvent("+1", "hi", now), domain.Allow("+1"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageHistory)
}

func TestRecordOutbound_RecordsNormalizedRecipient(t *testing.T) {
	h := &MockHistory{}
	h.On("RecordMessage", "+15554444", now).Return(nil)
	d := newDispatcher(nil, h, nil)

	require.NoError(t, d.RecordOutbound(context.Background(), domain.NewOutboundSMSEvent("+1 (555) 444-4", time.Time{})))
	h.AssertExpectations(t)
}

func TestRecordOutbound_IgnoresCallsAndWithheld(t *testing.T) {
	h := &MockHistory{}
	d := newDispatcher(nil, h, nil)

	call := domain.NewCallEvent("+15554444", now)
	call.Direction = domain.DirectionOut
	require.NoError(t, d.RecordOutbound(context.Background(), call))
	require.NoError(t, d.RecordOutbound(context.Background(), domain.NewOutboundSMSEvent("n/a", now)))
	h.AssertNotCalled(t, "RecordMessage", mock.Anything, mock.Anything)

	require.NoError(t, newDispatcher(nil, nil, nil).RecordOutbound(context.Background(), domain.NewOutboundSMSEvent("1", now)))
}

func TestRecordOutbound_Error(t *testing.T) {
	h := &MockHistory{}
	h.On("RecordMessage", "1", now).Return(errors.New("closed"))
	d := newDispatcher(nil, h, nil)
	err := d.RecordOutbound(context.Background(), domain.NewOutboundSMSEvent("1", now))
	require.Error(t, err)
	assert.Contains(t, err.Error(), StageHistory)
}

func TestLogNotifier(t *testing.T) {
	require.NoError(t, LogNotifier{}.NotifyBlocked(context.Background(), domain.JournalEntry{Number: "+1"}))
}
