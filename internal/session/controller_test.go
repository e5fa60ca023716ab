package session

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lifeforge/docchat/internal/ragclient"
)

// scriptStream replays scripted chunks, optionally blocking at a given
// index until released (or until its context is cancelled).
type scriptStream struct {
	ctx      context.Context
	chunks   []string
	index    int
	finalErr error // nil means clean io.EOF
	gate     chan struct{}
	gateAt   int
}

func (s *scriptStream) Recv() ([]byte, error) {
	if s.gate != nil && s.index == s.gateAt {
		gate := s.gate
		s.gate = nil
		select {
		case <-gate:
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		}
	}
	if s.ctx.Err() != nil {
		return nil, s.ctx.Err()
	}
	if s.index < len(s.chunks) {
		chunk := s.chunks[s.index]
		s.index++
		return []byte(chunk), nil
	}
	if s.finalErr != nil {
		return nil, s.finalErr
	}
	return nil, io.EOF
}

func (s *scriptStream) Close() error { return nil }

type queryCall struct {
	question string
	history  []ragclient.Message
}

// fakeQuerier hands out one scripted stream per Query call, recording the
// requests it saw.
type fakeQuerier struct {
	mu      sync.Mutex
	streams []*scriptStream
	calls   []queryCall
	logs    []ragclient.LogRecord
}

func (q *fakeQuerier) Query(ctx context.Context, question string, history []ragclient.Message) (ragclient.Stream, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, queryCall{question: question, history: history})
	if len(q.streams) == 0 {
		return &scriptStream{ctx: ctx}, nil
	}
	s := q.streams[0]
	q.streams = q.streams[1:]
	s.ctx = ctx
	return s, nil
}

func (q *fakeQuerier) RecentLogs(ctx context.Context, limit int) ([]ragclient.LogRecord, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.logs, nil
}

func (q *fakeQuerier) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.calls)
}

// snapshotLog records every update the controller publishes.
type snapshotLog struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (l *snapshotLog) add(s Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.snaps = append(l.snaps, s)
}

func (l *snapshotLog) all() []Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Snapshot(nil), l.snaps...)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func newTestController(q *fakeQuerier, log *snapshotLog) *Controller {
	cfg := Config{Throttle: time.Millisecond}
	if log != nil {
		cfg.OnUpdate = log.add
	}
	return NewController(q, &Ledger{}, &NoopStore{}, cfg)
}

func TestPlainAnswerCompletes(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"The capital ", "is Paris."}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "What is the capital of France?"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	snap := c.Snapshot()
	if snap.Display != "The capital is Paris." {
		t.Fatalf("display = %q", snap.Display)
	}
	if snap.Metadata != nil {
		t.Fatalf("expected no metadata, got %+v", snap.Metadata)
	}
	if c.Ledger().Len() != 1 {
		t.Fatalf("ledger len = %d, want 1", c.Ledger().Len())
	}
	turn := c.Ledger().Turns()[0]
	if turn.Question != "What is the capital of France?" || turn.Answer != "The capital is Paris." {
		t.Fatalf("turn = %+v", turn)
	}
}

func TestMetadataTrailerIsParsedAndHidden(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"Answer text", "\n\n__METADATA__", `{"confidence":0.9,"source_pages":[3]}`}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	snap := c.Snapshot()
	if snap.Display != "Answer text" {
		t.Fatalf("display = %q", snap.Display)
	}
	if snap.Metadata == nil || snap.Metadata.Confidence != 0.9 {
		t.Fatalf("metadata = %+v", snap.Metadata)
	}
}

func TestDelimiterSplitAcrossChunks(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"...end\n\n__MET", "ADATA__", `{"confidence":0.9}`}},
	}}
	log := &snapshotLog{}
	c := newTestController(q, log)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	snap := c.Snapshot()
	if snap.Display != "...end" {
		t.Fatalf("display = %q", snap.Display)
	}
	if snap.Metadata == nil || snap.Metadata.Confidence != 0.9 {
		t.Fatalf("metadata = %+v", snap.Metadata)
	}
	// No intermediate render may ever contain delimiter bytes.
	for _, s := range log.all() {
		if strings.Contains(s.Display, "__MET") {
			t.Fatalf("delimiter bytes leaked into display: %q", s.Display)
		}
	}
}

func TestEmptyQuestionIsRejectedBeforeNetwork(t *testing.T) {
	q := &fakeQuerier{}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "   "); err != ErrEmptyQuestion {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if q.callCount() != 0 {
		t.Fatalf("no request should have been issued")
	}
	if c.Snapshot().State != StateIdle {
		t.Fatalf("state = %v, want idle", c.Snapshot().State)
	}
}

func TestStopKeepsPartialAnswer(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"Partial ans"}, gate: gate, gateAt: 1},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "partial display", func() bool { return c.Snapshot().Display == "Partial ans" })

	c.Stop()
	waitFor(t, "abort", func() bool { return c.Snapshot().State == StateAborted })

	snap := c.Snapshot()
	if snap.Display != "Partial ans" {
		t.Fatalf("partial answer cleared: %q", snap.Display)
	}
	if snap.ErrText != "" {
		t.Fatalf("cancellation surfaced an error: %q", snap.ErrText)
	}
	if c.Ledger().Len() != 0 {
		t.Fatalf("aborted session appended to ledger")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	c := newTestController(&fakeQuerier{}, nil)

	c.Stop()
	c.Stop()
	if c.Snapshot().State != StateIdle {
		t.Fatalf("stop with no session changed state to %v", c.Snapshot().State)
	}
}

func TestTransportFailureShowsFixedError(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"some partial"}, finalErr: &ragclient.StatusError{Code: 500}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "failure", func() bool { return c.Snapshot().State == StateFailed })

	snap := c.Snapshot()
	if snap.Display != FailedDisplay {
		t.Fatalf("display = %q, want fixed error string", snap.Display)
	}
	if snap.ErrText != FailedDisplay {
		t.Fatalf("errText = %q", snap.ErrText)
	}
	if c.Ledger().Len() != 0 {
		t.Fatalf("failed session appended to ledger")
	}
}

func TestMetadataParseFailureIsNonFatal(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"answer", "\n\n__METADATA__", "{not json"}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	snap := c.Snapshot()
	if snap.Display != "answer" {
		t.Fatalf("display = %q", snap.Display)
	}
	if snap.Metadata != nil {
		t.Fatalf("unparsable trailer produced metadata: %+v", snap.Metadata)
	}
	if c.Ledger().Len() != 1 {
		t.Fatalf("completed session must still append, ledger len = %d", c.Ledger().Len())
	}
}

func TestWhitespaceOnlyAnswerDoesNotAppend(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"  \n \t "}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	if c.Ledger().Len() != 0 {
		t.Fatalf("blank answer appended to ledger")
	}
}

func TestSupersessionDiscardsStaleChunks(t *testing.T) {
	gate := make(chan struct{})
	defer close(gate)
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"from A", " late A tail"}, gate: gate, gateAt: 1},
		{chunks: []string{"B says hi"}},
	}}
	log := &snapshotLog{}
	c := newTestController(q, log)

	if err := c.Start(context.Background(), "question A"); err != nil {
		t.Fatalf("Start A: %v", err)
	}
	waitFor(t, "A's partial display", func() bool { return c.Snapshot().Display == "from A" })

	if err := c.Start(context.Background(), "question B"); err != nil {
		t.Fatalf("Start B: %v", err)
	}
	waitFor(t, "B's completion", func() bool {
		snap := c.Snapshot()
		return snap.State == StateCompleted && snap.Display == "B says hi"
	})

	// Give A's goroutine a moment to observe its cancellation.
	time.Sleep(20 * time.Millisecond)

	var sawB bool
	for _, s := range log.all() {
		if s.Display == "B says hi" {
			sawB = true
		}
		if sawB && strings.Contains(s.Display, "A") {
			t.Fatalf("stale session rendered after supersession: %q", s.Display)
		}
	}
	if got := c.Snapshot().Display; got != "B says hi" {
		t.Fatalf("final display = %q", got)
	}
	if c.Ledger().Len() != 1 {
		t.Fatalf("ledger len = %d, want only B's turn", c.Ledger().Len())
	}
	if c.Ledger().Turns()[0].Question != "question B" {
		t.Fatalf("wrong turn recorded: %+v", c.Ledger().Turns()[0])
	}
}

func TestHistoryIsSentOnNextStart(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"first answer"}},
		{chunks: []string{"second answer"}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "first question"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "first completion", func() bool { return c.Ledger().Len() == 1 })

	if err := c.Start(context.Background(), "second question"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "second completion", func() bool { return c.Ledger().Len() == 2 })

	q.mu.Lock()
	defer q.mu.Unlock()
	second := q.calls[1]
	if len(second.history) != 2 {
		t.Fatalf("history len = %d, want 2", len(second.history))
	}
	if second.history[0].Role != ragclient.RoleUser || second.history[0].Content != "first question" {
		t.Fatalf("history[0] = %+v", second.history[0])
	}
	if second.history[1].Role != ragclient.RoleAssistant || second.history[1].Content != "first answer" {
		t.Fatalf("history[1] = %+v", second.history[1])
	}
}

func TestResetClearsDisplayNotLedger(t *testing.T) {
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"an answer"}},
	}}
	c := newTestController(q, nil)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	c.Reset()
	snap := c.Snapshot()
	if snap.Display != "" || snap.Metadata != nil || snap.State != StateIdle {
		t.Fatalf("reset left state behind: %+v", snap)
	}
	if c.Ledger().Len() != 1 {
		t.Fatalf("reset must not clear the ledger")
	}
}

func TestAnalyticsEnrichmentIsBestEffort(t *testing.T) {
	q := &fakeQuerier{
		streams: []*scriptStream{{chunks: []string{"answer"}}},
		logs:    []ragclient.LogRecord{{Question: "q", Answer: "answer", Rejected: false, Confidence: 0.7}},
	}
	log := &snapshotLog{}
	c := NewController(q, &Ledger{}, &NoopStore{}, Config{
		Throttle:  time.Millisecond,
		OnUpdate:  log.add,
		FetchLogs: true,
	})

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })
	waitFor(t, "analytics record", func() bool { return c.Snapshot().Analytics != nil })

	if got := c.Snapshot().Analytics; got.Confidence != 0.7 {
		t.Fatalf("analytics = %+v", got)
	}
}

// slowStore delays writes, mimicking a store the caller closes as soon as
// the completed state becomes visible.
type slowStore struct {
	delay time.Duration

	mu      sync.Mutex
	closed  bool
	appends int
}

func (s *slowStore) Append(ctx context.Context, turn *Turn) error {
	time.Sleep(s.delay)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store is closed")
	}
	s.appends++
	return nil
}

func (s *slowStore) List(ctx context.Context, limit int) ([]Turn, error) { return nil, nil }
func (s *slowStore) Clear(ctx context.Context) error                    { return nil }

func (s *slowStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestWaitFlushesPersistenceBeforeStoreClose(t *testing.T) {
	store := &slowStore{delay: 30 * time.Millisecond}
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"an answer"}},
	}}
	c := NewController(q, &Ledger{}, store, Config{Throttle: time.Millisecond})

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	// One-shot callers close the store right after observing completion;
	// Wait must fence the in-flight write first.
	c.Wait()
	store.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if store.appends != 1 {
		t.Fatalf("completed turn was not persisted, appends = %d", store.appends)
	}
}

func TestUTF8SplitAcrossChunksRendersCleanly(t *testing.T) {
	// 日 is e6 97 a5; the split lands mid-rune.
	q := &fakeQuerier{streams: []*scriptStream{
		{chunks: []string{"答えは\xe6\x97", "\xa5\xe6\x9c\xac."}},
	}}
	log := &snapshotLog{}
	c := newTestController(q, log)

	if err := c.Start(context.Background(), "q"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "completion", func() bool { return c.Snapshot().State == StateCompleted })

	if got := c.Snapshot().Display; got != "答えは日本." {
		t.Fatalf("display = %q", got)
	}
	for _, s := range log.all() {
		if strings.ContainsRune(s.Display, '�') {
			t.Fatalf("replacement character rendered mid-stream: %q", s.Display)
		}
	}
}
