package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/haukened/callguard/internal/guard/common/clock"
	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/domain"
)

// maxLineSize bounds one event line; SMS bodies are short but may be concatenated.
const maxLineSize = 64 * 1024

// eventLine is the wire form of an event. Direction "out" marks a message the
// user sent; its remote party is To, falling back to From.
type eventLine struct {
	ID        string    `json:"id,omitempty"`
	Kind      string    `json:"kind"`
	Direction string    `json:"direction,omitempty"`
	From      string    `json:"from"`
	To        string    `json:"to,omitempty"`
	Body      string    `json:"body,omitempty"`
	Time      time.Time `json:"time"`
}

// verdictLine is the wire form of a verdict. ID echoes the event id so callers
// can correlate, since workers may answer out of order.
type verdictLine struct {
	ID        string `json:"id,omitempty"`
	Kind      string `json:"kind"`
	Direction string `json:"direction,omitempty"`
	From      string `json:"from"`
	Blocked   bool   `json:"blocked"`
	Reason    string `json:"reason"`
	Name      string `json:"name,omitempty"`
	Number    string `json:"number,omitempty"`
}

type request struct {
	id string
	ev domain.IncomingEvent
}

// StreamTransport reads newline-delimited JSON events from a reader, screens
// them on a pool of workers and writes one JSON verdict per event.
type StreamTransport struct {
	name    string
	in      io.Reader
	out     io.Writer
	workers int
	clock   clock.Clock
	logger  log.Logger

	outMu sync.Mutex
	enc   *json.Encoder

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// StreamOptions configures NewStreamTransport.
type StreamOptions struct {
	Name    string // reported by Address
	In      io.Reader
	Out     io.Writer
	Workers int
	Clock   clock.Clock
	Logger  log.Logger
}

func NewStreamTransport(opts StreamOptions) *StreamTransport {
	t := &StreamTransport{
		name:    opts.Name,
		in:      opts.In,
		out:     opts.Out,
		workers: opts.Workers,
		clock:   opts.Clock,
		logger:  opts.Logger,
	}
	if t.name == "" {
		t.name = "stream"
	}
	if t.workers <= 0 {
		t.workers = 1
	}
	if t.clock == nil {
		t.clock = clock.RealClock{}
	}
	if t.logger == nil {
		t.logger = log.NewNoopLogger()
	}
	t.logger = t.logger.Named("transport")
	if t.out == nil {
		t.out = io.Discard
	}
	t.enc = json.NewEncoder(t.out)
	return t
}

// Start begins reading events. It returns immediately; Wait blocks until the
// input is exhausted or the transport is stopped.
func (t *StreamTransport) Start(ctx context.Context, handler EventHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("%s transport already running", t.name)
	}
	if t.in == nil {
		return fmt.Errorf("%s transport has no input", t.name)
	}
	if handler == nil {
		return fmt.Errorf("%s transport requires a handler", t.name)
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.done = make(chan struct{})

	jobs := make(chan request, t.workers*2)
	go t.readLoop(ctx, jobs, t.stopCh)

	var wg sync.WaitGroup
	for i := 0; i < t.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t.worker(ctx, jobs, t.stopCh, handler)
		}()
	}
	go func(done chan struct{}) {
		wg.Wait()
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(done)
	}(t.done)

	t.logger.Info(map[string]any{"transport": t.name, "workers": t.workers}, "event transport started")
	return nil
}

// Stop signals the workers to finish. Events already being screened complete;
// queued events are dropped.
func (t *StreamTransport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		return nil
	}
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	t.logger.Info(map[string]any{"transport": t.name}, "event transport stopping")
	return nil
}

// Wait blocks until every worker has exited. It returns at once if the
// transport was never started.
func (t *StreamTransport) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (t *StreamTransport) Address() string { return t.name }

func (t *StreamTransport) readLoop(ctx context.Context, jobs chan<- request, stop <-chan struct{}) {
	defer close(jobs)
	scanner := bufio.NewScanner(t.in)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		req, err := t.decode(line)
		if err != nil {
			t.logger.Warn(map[string]any{"line": lineNum, "error": err}, "skip_malformed_event")
			continue
		}
		select {
		case jobs <- req:
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		t.logger.Error(map[string]any{"transport": t.name, "error": err}, "event stream read failed")
		return
	}
	t.logger.Debug(map[string]any{"transport": t.name, "lines": lineNum}, "event stream exhausted")
}

func (t *StreamTransport) decode(line string) (request, error) {
	var in eventLine
	if err := json.Unmarshal([]byte(line), &in); err != nil {
		return request{}, fmt.Errorf("decode event: %w", err)
	}
	kind, err := domain.ParseEventKind(in.Kind)
	if err != nil {
		return request{}, err
	}
	dir, err := domain.ParseDirection(in.Direction)
	if err != nil {
		return request{}, err
	}
	at := in.Time
	if at.IsZero() {
		at = t.clock.Now().UTC()
	}
	ev := domain.IncomingEvent{Kind: kind, Direction: dir, Origin: in.From, Timestamp: at}
	if dir == domain.DirectionOut && in.To != "" {
		ev.Origin = in.To
	}
	if kind == domain.EventSMS {
		ev.Body = in.Body
	}
	return request{id: in.ID, ev: ev}, nil
}

func (t *StreamTransport) worker(ctx context.Context, jobs <-chan request, stop <-chan struct{}, handler EventHandler) {
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case req, ok := <-jobs:
			if !ok {
				return
			}
			v := handler.HandleEvent(ctx, req.ev)
			t.write(req, v)
		}
	}
}

func (t *StreamTransport) write(req request, v domain.Verdict) {
	out := verdictLine{
		ID:      req.id,
		Kind:    req.ev.Kind.String(),
		From:    req.ev.Origin,
		Blocked: v.Blocked,
		Reason:  v.Reason.String(),
		Name:    v.MatchedName,
		Number:  v.Number,
	}
	if req.ev.Direction == domain.DirectionOut {
		out.Direction = req.ev.Direction.String()
	}
	t.outMu.Lock()
	err := t.enc.Encode(out)
	t.outMu.Unlock()
	if err != nil {
		t.logger.Warn(map[string]any{"transport": t.name, "error": err}, "failed to write verdict")
	}
}

var _ EventTransport = (*StreamTransport)(nil)
