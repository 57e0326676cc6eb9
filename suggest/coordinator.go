// Package suggest decides when to ask for a completion and which results
// may reach the screen. At most one request is live; anything produced by
// a superseded request is dropped.
package suggest

import (
	"context"
	"iter"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Paranoid-AF/sprig/logging"
)

// DefaultDebounce is the quiet period after an edit before a request is sent.
const DefaultDebounce = 150 * time.Millisecond

// State is the coordinator's request state.
type State int

const (
	Idle State = iota
	Pending
	Fulfilled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	default:
		return "unknown"
	}
}

// Provider produces growing suggestions for an input.
type Provider interface {
	Stream(ctx context.Context, input string, contextLines []string) iter.Seq[string]
}

// Scheduler runs fn on the goroutine that owns the coordinator. Post
// returns once fn is accepted, or with an error if ctx ends first.
type Scheduler interface {
	Post(ctx context.Context, fn func()) error
}

// Request is one completion attempt.
type Request struct {
	ID    uint64
	Query string
	// ContextLines is a private copy taken when the request was created.
	ContextLines []string

	cancel    context.CancelFunc
	cancelled bool
}

// Options configures a Coordinator.
type Options struct {
	// Debounce delays each request. Zero means DefaultDebounce; negative disables it.
	Debounce time.Duration
	// RequestsPerSecond caps request starts. Zero or less means unlimited.
	RequestsPerSecond float64
	Burst             int
	// OnSuggestion receives every value accepted from the active request.
	OnSuggestion func(suggestion string)
	// OnState observes every state transition.
	OnState func(state State, id uint64)
	Logger  *slog.Logger
}

// Coordinator owns the live completion request. Every method must be
// called on the scheduler goroutine.
type Coordinator struct {
	provider Provider
	sched    Scheduler
	limiter  *rate.Limiter
	debounce time.Duration
	opts     Options
	log      *slog.Logger

	ctx    context.Context
	stop   context.CancelFunc
	closed bool

	state      State
	stateID    uint64
	active     *Request
	nextID     uint64
	lastInput  string
	observed   bool
	suggestion string
}

// New creates an idle Coordinator.
func New(provider Provider, sched Scheduler, opts Options) *Coordinator {
	debounce := opts.Debounce
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		provider: provider,
		sched:    sched,
		limiter:  rate.NewLimiter(limit, burst),
		debounce: debounce,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		stop:     stop,
	}
}

// State returns the current state.
func (c *Coordinator) State() State { return c.state }

// ActiveID returns the live request's ID, or 0.
func (c *Coordinator) ActiveID() uint64 {
	if c.active == nil {
		return 0
	}
	return c.active.ID
}

// Suggestion returns the last accepted suggestion. It survives
// CancelPending and is cleared by Reset.
func (c *Coordinator) Suggestion() string { return c.suggestion }

// NotifyInputChanged starts a request for input unless it equals the last
// observed input. Blank input only cancels.
func (c *Coordinator) NotifyInputChanged(input string, contextLines []string) {
	if c.closed || (c.observed && input == c.lastInput) {
		return
	}
	c.lastInput, c.observed = input, true
	c.start(input, contextLines)
}

// Refresh starts a request even when input has not changed.
func (c *Coordinator) Refresh(input string, contextLines []string) {
	if c.closed {
		return
	}
	c.lastInput, c.observed = input, true
	c.start(input, contextLines)
}

// CancelPending cancels the live request and returns to Idle. The last
// accepted suggestion is kept.
func (c *Coordinator) CancelPending() {
	c.cancelActive()
	c.setState(Idle, 0)
}

// Reset cancels the live request and forgets the observed input and
// suggestion, so the next input always starts a request.
func (c *Coordinator) Reset() {
	c.CancelPending()
	c.lastInput, c.observed = "", false
	c.suggestion = ""
}

// Close cancels everything and ignores further input.
func (c *Coordinator) Close() {
	if c.closed {
		return
	}
	c.closed = true
	c.CancelPending()
	c.stop()
}

func (c *Coordinator) start(input string, contextLines []string) {
	c.cancelActive()
	if strings.TrimSpace(input) == "" {
		c.setState(Idle, 0)
		return
	}

	c.nextID++
	ctx, cancel := context.WithCancel(c.ctx)
	req := &Request{
		ID:           c.nextID,
		Query:        input,
		ContextLines: append([]string(nil), contextLines...),
		cancel:       cancel,
	}
	c.active = req
	c.setState(Pending, req.ID)
	go c.run(ctx, req)
}

func (c *Coordinator) cancelActive() {
	if c.active == nil {
		return
	}
	c.active.cancelled = true
	c.active.cancel()
	c.log.Debug("request cancelled", "id", c.active.ID)
	c.active = nil
}

func (c *Coordinator) setState(s State, id uint64) {
	if c.state == s && c.stateID == id {
		return
	}
	c.state, c.stateID = s, id
	if c.opts.OnState != nil {
		c.opts.OnState(s, id)
	}
}

// run executes off the scheduler goroutine and touches only req's
// immutable fields; results go back through the scheduler.
func (c *Coordinator) run(ctx context.Context, req *Request) {
	defer req.cancel()

	if c.debounce > 0 {
		t := time.NewTimer(c.debounce)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return
	}

	c.log.Debug("request started", "id", req.ID, "query", req.Query)
	for s := range c.provider.Stream(ctx, req.Query, req.ContextLines) {
		if err := c.sched.Post(ctx, func() { c.deliver(req, s) }); err != nil {
			return
		}
	}
	c.sched.Post(ctx, func() { c.finish(req) })
}

func (c *Coordinator) deliver(req *Request, s string) {
	if req != c.active || req.cancelled {
		c.log.Debug("discarding stale suggestion", "id", req.ID, "active", c.ActiveID())
		return
	}
	if c.state == Pending {
		c.setState(Fulfilled, req.ID)
	}
	c.suggestion = s
	if c.opts.OnSuggestion != nil {
		c.opts.OnSuggestion(s)
	}
}

// finish handles the end of a stream. A request that produced nothing
// returns the coordinator to Idle.
func (c *Coordinator) finish(req *Request) {
	if req != c.active || req.cancelled {
		return
	}
	if c.state == Pending {
		c.log.Debug("request produced no suggestion", "id", req.ID)
		c.active = nil
		c.setState(Idle, 0)
	}
}
