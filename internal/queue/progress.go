package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/codebuildervaibhav/meeting-insights/internal/types"
)

var (
	// ErrInFlight is returned when the same file is already being processed
	ErrInFlight = errors.New("this file is already being processed")
	// ErrBadTransition is returned when a job's stage cannot move to processing
	ErrBadTransition = errors.New("job cannot be processed from its current stage")
)

// Snapshot is the client-visible progress of a job
type Snapshot struct {
	JobID     string      `json:"job_id"`
	Stage     types.Stage `json:"stage"`
	Progress  int         `json:"progress"`
	Message   string      `json:"message,omitempty"`
	ErrorKind types.Kind  `json:"-"`
	ErrorCode string      `json:"error_code,omitempty"`
	// Transcript and Summary carry results that could not be saved
	Transcript string                `json:"transcript,omitempty"`
	Summary    *types.SummaryContent `json:"summary,omitempty"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

type entry struct {
	snap      Snapshot
	userID    string
	key       string
	subs      map[chan Snapshot]struct{}
	heartbeat *heartbeat
}

type heartbeat struct {
	once sync.Once
	done chan struct{}
	wg   sync.WaitGroup
}

func (h *heartbeat) stop() {
	h.once.Do(func() { close(h.done) })
	h.wg.Wait()
}

// Tracker holds in-memory progress for in-flight and recently settled jobs
type Tracker struct {
	mu        sync.Mutex
	entries   map[string]*entry
	inflight  map[string]string
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewTracker creates a tracker. interval is the heartbeat tick; settled
// entries are kept for retention before Prune drops them.
func NewTracker(interval, retention time.Duration) *Tracker {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &Tracker{
		entries:   make(map[string]*entry),
		inflight:  make(map[string]string),
		interval:  interval,
		retention: retention,
		now:       time.Now,
	}
}

// Begin registers a job as processing. It fails with ErrInFlight when key is
// held by another unsettled job.
func (t *Tracker) Begin(jobID, userID, key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if owner, ok := t.inflight[key]; ok && owner != jobID {
		return ErrInFlight
	}
	var subs map[chan Snapshot]struct{}
	if old, ok := t.entries[jobID]; ok {
		if !old.snap.Stage.Terminal() {
			return ErrInFlight
		}
		if !old.snap.Stage.CanTransition(types.StageProcessing) {
			return ErrBadTransition
		}
		subs = old.subs
	}
	if subs == nil {
		subs = make(map[chan Snapshot]struct{})
	}

	e := &entry{
		snap:   Snapshot{JobID: jobID, Stage: types.StageProcessing, UpdatedAt: t.now()},
		userID: userID,
		key:    key,
		subs:   subs,
	}
	t.entries[jobID] = e
	t.inflight[key] = jobID
	t.publish(e)
	return nil
}

// Discard forgets a job that never started
func (t *Tracker) Discard(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	if !ok {
		return
	}
	if t.inflight[e.key] == jobID {
		delete(t.inflight, e.key)
	}
	for ch := range e.subs {
		close(ch)
	}
	delete(t.entries, jobID)
}

// Heartbeat starts the synthetic progress ticker. The returned stop function
// stops the ticker and waits for it to exit; it is safe to call more than once.
func (t *Tracker) Heartbeat(jobID string) (stop func()) {
	h := &heartbeat{done: make(chan struct{})}

	t.mu.Lock()
	if e, ok := t.entries[jobID]; ok {
		e.heartbeat = h
	}
	t.mu.Unlock()

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				t.tick(jobID)
			}
		}
	}()

	return h.stop
}

func (t *Tracker) tick(jobID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	if !ok || e.snap.Stage != types.StageProcessing {
		return
	}
	if e.snap.Progress < 99 {
		e.snap.Progress++
		e.snap.UpdatedAt = t.now()
		t.publish(e)
	}
}

// SetMessage updates the human-readable step description
func (t *Tracker) SetMessage(jobID, msg string) {
	t.update(jobID, func(s *Snapshot) { s.Message = msg })
}

// SetTranscript keeps the transcript on the snapshot until the job settles
func (t *Tracker) SetTranscript(jobID, text string) {
	t.update(jobID, func(s *Snapshot) { s.Transcript = text })
}

// Complete settles the job as completed with progress 100
func (t *Tracker) Complete(jobID string) {
	t.settle(jobID, types.StageCompleted, func(s *Snapshot) {
		s.Progress = 100
		s.Message = "Processing complete"
		s.ErrorKind = types.KindUnknown
		s.ErrorCode = ""
		// results are durable now
		s.Transcript = ""
		s.Summary = nil
	})
}

// Fail settles the job as failed. A non-empty transcript or non-nil summary
// stays readable on the snapshot.
func (t *Tracker) Fail(jobID string, kind types.Kind, msg, transcript string, summary *types.SummaryContent) {
	t.settle(jobID, types.StageError, func(s *Snapshot) {
		s.Progress = 0
		s.Message = msg
		s.ErrorKind = kind
		s.ErrorCode = kind.Code()
		s.Transcript = transcript
		s.Summary = summary
	})
}

// Snapshot returns the current progress of a job
func (t *Tracker) Snapshot(jobID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	if !ok {
		return Snapshot{}, false
	}
	return e.snap, true
}

// Owns reports whether the job is currently being processed
func (t *Tracker) Owns(jobID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	return ok && !e.snap.Stage.Terminal()
}

// Subscribe returns a channel that receives the current snapshot and every
// later change. The channel is closed once the job settles or cancel is called.
func (t *Tracker) Subscribe(jobID string) (<-chan Snapshot, func(), bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	if !ok {
		return nil, func() {}, false
	}

	ch := make(chan Snapshot, 16)
	ch <- e.snap
	if e.snap.Stage.Terminal() {
		close(ch)
		return ch, func() {}, true
	}
	e.subs[ch] = struct{}{}

	cancel := func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if cur, ok := t.entries[jobID]; ok {
			if _, subscribed := cur.subs[ch]; subscribed {
				delete(cur.subs, ch)
				close(ch)
			}
		}
	}
	return ch, cancel, true
}

// Prune drops settled entries older than the retention period
func (t *Tracker) Prune() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.retention)
	n := 0
	for id, e := range t.entries {
		if e.snap.Stage.Terminal() && e.snap.UpdatedAt.Before(cutoff) {
			delete(t.entries, id)
			n++
		}
	}
	return n
}

func (t *Tracker) update(jobID string, fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[jobID]
	if !ok {
		return
	}
	fn(&e.snap)
	e.snap.UpdatedAt = t.now()
	t.publish(e)
}

// settle moves the job to a terminal stage. A job that cannot take the
// transition, such as one already settled, is left as it is.
func (t *Tracker) settle(jobID string, to types.Stage, fn func(*Snapshot)) {
	t.mu.Lock()
	e, ok := t.entries[jobID]
	if !ok || !e.snap.Stage.CanTransition(to) {
		t.mu.Unlock()
		return
	}
	h := e.heartbeat
	e.heartbeat = nil
	t.mu.Unlock()

	// stop outside the lock; tick needs it to return
	if h != nil {
		h.stop()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e.snap.Stage = to
	fn(&e.snap)
	e.snap.UpdatedAt = t.now()
	if t.inflight[e.key] == jobID {
		delete(t.inflight, e.key)
	}
	for ch := range e.subs {
		deliverFinal(ch, e.snap)
		close(ch)
	}
	e.subs = make(map[chan Snapshot]struct{})
}

// deliverFinal always lands snap on ch, dropping the oldest buffered update
// when the subscriber has fallen behind. Only the settling goroutine sends
// while t.mu is held, so one receive frees a slot.
func deliverFinal(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

// publish must be called with t.mu held. Slow subscribers miss intermediate ticks.
func (t *Tracker) publish(e *entry) {
	for ch := range e.subs {
		select {
		case ch <- e.snap:
		default:
		}
	}
}
