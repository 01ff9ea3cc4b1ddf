// Package engine runs marker classification sessions: chunk intake,
// atomic matching, rule cascades and emotion tracking.
package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/leandeep/marker-engine/internal/affect"
	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/emotion"
	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/match"
	"github.com/leandeep/marker-engine/internal/session"
	"github.com/leandeep/marker-engine/internal/textproc"
)

// Options tune the engine.
type Options struct {
	Matcher match.Options
	Emotion emotion.Params
	Segment textproc.Options
	// Scorer supplies the per-chunk affect sample. Nil selects the
	// lexicon scorer.
	Scorer affect.Scorer
	Logger *zap.Logger
	// QueueSize is the per-session command buffer. Feed blocks when it
	// is full.
	QueueSize int
	// SubscriberBuffer is the default buffer handed to subscribers.
	SubscriberBuffer int
}

// DefaultOptions returns the default engine settings.
func DefaultOptions() Options {
	return Options{
		Matcher:          match.DefaultOptions(),
		Emotion:          emotion.DefaultParams(),
		Segment:          textproc.DefaultOptions(),
		QueueSize:        128,
		SubscriberBuffer: session.DefaultSubscriberBuffer,
	}
}

// Engine owns the active sessions and evaluates chunks against the
// catalog held by its Holder. Safe for concurrent use; per-session
// work is serialized on that session's worker goroutine.
type Engine struct {
	holder  *catalog.Holder
	matcher *match.Matcher
	scorer  affect.Scorer
	opts    Options
	logger  *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionHandle
	entropy  *rand.Rand
}

// New creates an engine over a catalog holder.
func New(holder *catalog.Holder, opts Options) *Engine {
	def := DefaultOptions()
	if opts.QueueSize <= 0 {
		opts.QueueSize = def.QueueSize
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = def.SubscriberBuffer
	}
	if opts.Scorer == nil {
		opts.Scorer = affect.NewLexicon()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		holder:   holder,
		matcher:  match.New(opts.Matcher),
		scorer:   opts.Scorer,
		opts:     opts,
		logger:   opts.Logger,
		sessions: make(map[string]*sessionHandle),
		entropy:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// sessionHandle pairs a session's state with its worker. All state
// mutation happens on the worker goroutine; submit is the only way in.
type sessionHandle struct {
	id        string
	state     *session.State
	bus       *session.Bus
	calc      *emotion.Calculator
	entropy   *rand.Rand
	streamOff int

	cmds chan func()
	done chan struct{}

	sendMu sync.RWMutex
	closed bool
}

func (h *sessionHandle) run() {
	defer close(h.done)
	for fn := range h.cmds {
		fn()
	}
}

// submit queues fn for the worker. It blocks while the queue is full.
func (h *sessionHandle) submit(ctx context.Context, fn func()) error {
	h.sendMu.RLock()
	defer h.sendMu.RUnlock()
	if h.closed {
		return &marker.SessionNotFoundError{SessionID: h.id}
	}
	select {
	case h.cmds <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *sessionHandle) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), h.entropy).String()
}

// NewSessionID mints a fresh session id.
func (e *Engine) NewSessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), e.entropy).String()
}

// StartSession creates a session and its worker.
func (e *Engine) StartSession(id string) error {
	if id == "" {
		return fmt.Errorf("session id required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.sessions[id]; ok {
		return fmt.Errorf("session %s already exists", id)
	}
	h := &sessionHandle{
		id:      id,
		state:   session.NewState(id),
		bus:     session.NewBus(),
		calc:    emotion.New(e.opts.Emotion),
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
		cmds:    make(chan func(), e.opts.QueueSize),
		done:    make(chan struct{}),
	}
	e.sessions[id] = h
	go h.run()
	e.logger.Debug("session started", zap.String("session", id))
	return nil
}

func (e *Engine) handle(id string) (*sessionHandle, error) {
	e.mu.RLock()
	h, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, &marker.SessionNotFoundError{SessionID: id}
	}
	return h, nil
}

// Feed submits one chunk. The chunk's span base is the running total
// of bytes fed so far; the session stream is the concatenation of its
// chunks.
func (e *Engine) Feed(ctx context.Context, sessionID, chunk string) error {
	h, err := e.handle(sessionID)
	if err != nil {
		return err
	}
	return h.submit(ctx, func() {
		base := h.streamOff
		h.streamOff += len(chunk)
		e.processChunk(h, chunk, base)
	})
}

// FeedAt submits one chunk at an explicit stream offset. The running
// offset continues after the chunk.
func (e *Engine) FeedAt(ctx context.Context, sessionID, chunk string, offset int) error {
	h, err := e.handle(sessionID)
	if err != nil {
		return err
	}
	return h.submit(ctx, func() {
		h.streamOff = offset + len(chunk)
		e.processChunk(h, chunk, offset)
	})
}

// Subscribe returns a channel of session updates. buffer <= 0 selects
// the engine default. The channel closes when the session closes.
func (e *Engine) Subscribe(sessionID string, buffer int) (<-chan session.Update, error) {
	h, err := e.handle(sessionID)
	if err != nil {
		return nil, err
	}
	if buffer <= 0 {
		buffer = e.opts.SubscriberBuffer
	}
	return h.bus.Subscribe(buffer), nil
}

// Unsubscribe detaches a subscriber channel early.
func (e *Engine) Unsubscribe(sessionID string, ch <-chan session.Update) {
	h, err := e.handle(sessionID)
	if err != nil {
		return
	}
	h.bus.Unsubscribe(ch)
}

// Snapshot returns the session's aggregates, consistent with all work
// submitted before the call.
func (e *Engine) Snapshot(sessionID string) (session.Snapshot, error) {
	h, err := e.handle(sessionID)
	if err != nil {
		return session.Snapshot{}, err
	}
	reply := make(chan session.Snapshot, 1)
	if err := h.submit(context.Background(), func() {
		reply <- h.state.Snapshot()
	}); err != nil {
		return session.Snapshot{}, err
	}
	return <-reply, nil
}

// EventsSince returns the session's events after seq, in order.
func (e *Engine) EventsSince(sessionID string, seq uint64) ([]marker.Event, error) {
	h, err := e.handle(sessionID)
	if err != nil {
		return nil, err
	}
	reply := make(chan []marker.Event, 1)
	if err := h.submit(context.Background(), func() {
		reply <- append([]marker.Event(nil), h.state.EventsSince(seq)...)
	}); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// CloseSession flushes the session's queued work, stops its worker and
// closes its subscriber channels.
func (e *Engine) CloseSession(id string) error {
	e.mu.Lock()
	h, ok := e.sessions[id]
	if ok {
		delete(e.sessions, id)
	}
	e.mu.Unlock()
	if !ok {
		return &marker.SessionNotFoundError{SessionID: id}
	}

	h.sendMu.Lock()
	h.closed = true
	h.sendMu.Unlock()
	close(h.cmds)
	<-h.done
	h.bus.Close()
	e.logger.Debug("session closed",
		zap.String("session", id),
		zap.Uint64("events", h.state.Seq()),
		zap.Uint64("dropped_updates", h.bus.Dropped()))
	return nil
}

// Close shuts down every session.
func (e *Engine) Close() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		_ = e.CloseSession(id)
	}
}
