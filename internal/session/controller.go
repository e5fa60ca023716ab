package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/lifeforge/docchat/internal/ragclient"
	"github.com/lifeforge/docchat/internal/stream"
)

// FailedDisplay replaces the answer area when the transport fails: a
// partial answer must not be presented as if it were final.
const FailedDisplay = "Error: failed to get a response from the server."

// ErrEmptyQuestion rejects a session start before any network activity.
var ErrEmptyQuestion = errors.New("question must not be empty")

// State is the lifecycle of one query session.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateCompleted
	StateAborted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Querier opens a streaming answer for a question plus prior context.
type Querier interface {
	Query(ctx context.Context, question string, history []ragclient.Message) (ragclient.Stream, error)
}

// LogFetcher is implemented by queriers that can also return the backend's
// persisted analytics records.
type LogFetcher interface {
	RecentLogs(ctx context.Context, limit int) ([]ragclient.LogRecord, error)
}

// Snapshot is a consistent read of the controller's visible state. Gen
// identifies which session the snapshot belongs to; it advances on every
// Start.
type Snapshot struct {
	State     State
	Gen       uint64
	Question  string
	Display   string
	Metadata  *ragclient.Metadata
	Analytics *ragclient.LogRecord
	ErrText   string
}

// Streaming reports whether a session is in flight.
func (s Snapshot) Streaming() bool {
	return s.State == StateStreaming
}

// Config tunes a Controller.
type Config struct {
	// Throttle is the minimum interval between display updates.
	// Zero means stream.DefaultThrottle.
	Throttle time.Duration
	// OnUpdate is invoked after every visible state change.
	OnUpdate func(Snapshot)
	// FetchLogs enables the best-effort analytics fetch after completion.
	FetchLogs bool
}

// Controller owns the lifecycle of query sessions: it issues the request,
// feeds the response stream through decode, framing and throttling, and
// folds completed exchanges into the ledger. All mutable session state is
// owned here and exposed only through Snapshot.
//
// At most one session streams at a time; starting a new one supersedes and
// aborts the previous session, and a superseded session's late chunks are
// discarded by a per-session generation check.
type Controller struct {
	querier Querier
	ledger  *Ledger
	store   Store
	cfg     Config

	bg sync.WaitGroup

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	state     State
	question  string
	display   string
	meta      *ragclient.Metadata
	analytics *ragclient.LogRecord
	errText   string
}

// NewController creates a controller. store may be nil when history
// persistence is disabled.
func NewController(querier Querier, ledger *Ledger, store Store, cfg Config) *Controller {
	if ledger == nil {
		ledger = &Ledger{}
	}
	if store == nil {
		store = &NoopStore{}
	}
	return &Controller{
		querier: querier,
		ledger:  ledger,
		store:   store,
		cfg:     cfg,
		state:   StateIdle,
	}
}

// Ledger returns the conversation ledger.
func (c *Controller) Ledger() *Ledger {
	return c.ledger
}

// Snapshot returns the current visible state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		Gen:       c.gen,
		Question:  c.question,
		Display:   c.display,
		Metadata:  c.meta,
		Analytics: c.analytics,
		ErrText:   c.errText,
	}
}

// Start begins a new session for question. An empty (trimmed) question is
// rejected before any network activity. A session already streaming is
// aborted first.
func (c *Controller) Start(ctx context.Context, question string) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return ErrEmptyQuestion
	}

	history := c.ledger.Messages()

	c.mu.Lock()
	if c.cancel != nil {
		// Supersede: the old session's chunks become invisible the moment
		// the generation advances, even before its read loop notices.
		c.cancel()
		c.cancel = nil
	}
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateStreaming
	c.question = question
	c.display = ""
	c.meta = nil
	c.analytics = nil
	c.errText = ""
	c.mu.Unlock()
	c.notify()

	go c.run(runCtx, gen, question, history)
	return nil
}

// Stop requests cooperative cancellation of the in-flight session. It is
// idempotent and silent: no session, no effect, and cancellation is never
// surfaced as an error.
func (c *Controller) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Reset clears the displayed answer and metadata. It does not touch the
// ledger and is a no-op while a session is streaming (stop it first).
func (c *Controller) Reset() {
	c.mu.Lock()
	if c.state == StateStreaming {
		c.mu.Unlock()
		return
	}
	c.state = StateIdle
	c.question = ""
	c.display = ""
	c.meta = nil
	c.analytics = nil
	c.errText = ""
	c.mu.Unlock()
	c.notify()
}

// run drives one session's stream to a terminal state.
func (c *Controller) run(ctx context.Context, gen uint64, question string, history []ragclient.Message) {
	th := stream.NewThrottler(c.cfg.Throttle, func(text string) {
		c.setDisplay(gen, text)
	})
	var dec stream.Decoder
	var frame stream.Frame

	s, err := c.querier.Query(ctx, question, history)
	if err != nil {
		c.finish(gen, th, &frame, err)
		return
	}
	defer s.Close()

	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			frame.Append(dec.Flush())
			c.finish(gen, th, &frame, nil)
			return
		}
		if err != nil {
			c.finish(gen, th, &frame, err)
			return
		}
		if text := dec.Write(chunk); text != "" {
			frame.Append(text)
			th.Push(frame.Display())
		}
	}
}

// setDisplay publishes throttled display text, dropping output from
// superseded sessions.
func (c *Controller) setDisplay(gen uint64, text string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.display = text
	c.mu.Unlock()
	c.notify()
}

// finish translates the stream's terminal condition into exactly one of
// completed, aborted or failed. Transport errors never propagate further.
func (c *Controller) finish(gen uint64, th *stream.Throttler, frame *stream.Frame, err error) {
	display, tail := frame.Split()

	switch {
	case err == nil:
		meta, _ := ragclient.ParseTrailer(tail)
		th.Flush(display)
		c.complete(gen, display, meta)
	case errors.Is(err, context.Canceled):
		// User-initiated or superseded: keep the partial answer on screen.
		th.Flush(display)
		c.abort(gen)
	default:
		th.Flush(FailedDisplay)
		c.fail(gen, err)
	}
}

func (c *Controller) complete(gen uint64, display string, meta *ragclient.Metadata) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateCompleted
	c.meta = meta
	c.cancel = nil
	question := c.question
	c.mu.Unlock()

	if strings.TrimSpace(display) != "" {
		turn := Turn{
			ID:        NewID(),
			Question:  question,
			Answer:    display,
			Metadata:  meta,
			CreatedAt: time.Now(),
		}
		c.ledger.Append(turn)
		c.bg.Add(1)
		go func() {
			defer c.bg.Done()
			c.persist(turn)
		}()
		if c.cfg.FetchLogs {
			c.bg.Add(1)
			go func() {
				defer c.bg.Done()
				c.fetchAnalytics(gen)
			}()
		}
	}
	c.notify()
}

// Wait blocks until background persistence and analytics work from
// completed sessions has finished. Callers must Wait before closing the
// store, or a just-completed turn can miss its write.
func (c *Controller) Wait() {
	c.bg.Wait()
}

func (c *Controller) abort(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateAborted
	c.cancel = nil
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) fail(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.errText = FailedDisplay
	c.cancel = nil
	c.mu.Unlock()
	fmt.Fprintf(os.Stderr, "warning: query session failed: %v\n", err)
	c.notify()
}

// persist writes the turn to the history store. Best-effort: persistence
// problems never affect the completed session.
func (c *Controller) persist(turn Turn) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.store.Append(ctx, &turn); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to persist turn: %v\n", err)
	}
}

// fetchAnalytics pulls the backend's persisted record for the exchange
// that just completed. Failure is ignored.
func (c *Controller) fetchAnalytics(gen uint64) {
	fetcher, ok := c.querier.(LogFetcher)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	records, err := fetcher.RecentLogs(ctx, 1)
	if err != nil || len(records) == 0 {
		return
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.analytics = &records[0]
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) notify() {
	if c.cfg.OnUpdate == nil {
		return
	}
	c.cfg.OnUpdate(c.Snapshot())
}
