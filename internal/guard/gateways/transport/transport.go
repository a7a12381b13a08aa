// Package transport feeds incoming events from the telephony side into the
// screener and returns verdicts.
package transport

import (
	"context"

	"github.com/haukened/callguard/internal/guard/domain"
)

// EventHandler screens one event.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev domain.IncomingEvent) domain.Verdict
}

// EventTransport is the lifecycle shared by event sources.
type EventTransport interface {
	Start(ctx context.Context, handler EventHandler) error
	Stop() error
	Wait()
	Address() string
}
