// Package arbiter decides buzz races. Each (session, question) pair
// owns one window that accepts timestamped arrivals while open and is
// resolved into a ranked, cached result exactly once.
package arbiter

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/skyconnfig/qdq/internal/domain"
	"github.com/skyconnfig/qdq/internal/metrics"
)

// DefaultTieWindow is how far behind the earliest arrival a buzz may
// land and still qualify.
const DefaultTieWindow = 100 * time.Millisecond

const persistTimeout = 5 * time.Second

type windowState int

const (
	stateOpen windowState = iota
	stateLocked
	stateClosed
)

type windowKey struct {
	sessionID  int64
	questionID int64
}

type arrival struct {
	participant domain.Participant
	serverTime  int64
}

// window holds the race state for one (session, question) key. The
// arrival slice is append-only while open; timestamps are assigned
// under the window mutex, so the slice is ordered by construction and
// insertion order doubles as the tie-break order.
type window struct {
	mu         sync.Mutex
	state      windowState
	arrivals   []arrival
	seen       map[domain.Participant]struct{}
	resolution *domain.Resolution
}

// Arbiter owns every live buzz window. Windows are created and removed
// only by explicit session lifecycle calls, never by timers.
type Arbiter struct {
	clock     clockwork.Clock
	tieWindow time.Duration
	logs      domain.BuzzLogRepository

	mu      sync.RWMutex
	windows map[windowKey]*window
}

// New creates an arbiter. logs may be nil to disable durable logging.
func New(clock clockwork.Clock, tieWindow time.Duration, logs domain.BuzzLogRepository) *Arbiter {
	if tieWindow <= 0 {
		tieWindow = DefaultTieWindow
	}
	return &Arbiter{
		clock:     clock,
		tieWindow: tieWindow,
		logs:      logs,
		windows:   make(map[windowKey]*window),
	}
}

// OpenWindow starts accepting arrivals for the key. An existing window
// for the same key is discarded: a new question supersedes the old one.
func (a *Arbiter) OpenWindow(sessionID, questionID int64) {
	key := windowKey{sessionID, questionID}

	a.mu.Lock()
	a.windows[key] = &window{
		state: stateOpen,
		seen:  make(map[domain.Participant]struct{}),
	}
	a.mu.Unlock()

	metrics.BuzzWindowsOpened.Inc()
	slog.Info("buzz window opened", "session_id", sessionID, "question_id", questionID)
}

// Register records one arrival. The timestamp comes from the server
// clock at the instant of processing, never from the client. Returns
// the assigned timestamp on success.
func (a *Arbiter) Register(sessionID, questionID int64, p domain.Participant) (int64, error) {
	w := a.lookup(sessionID, questionID)
	if w == nil {
		metrics.BuzzArrivalsTotal.WithLabelValues("window_not_open").Inc()
		return 0, domain.ErrWindowNotOpen
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateOpen {
		metrics.BuzzArrivalsTotal.WithLabelValues("window_not_open").Inc()
		return 0, domain.ErrWindowNotOpen
	}
	if _, dup := w.seen[p]; dup {
		metrics.BuzzArrivalsTotal.WithLabelValues("duplicate").Inc()
		return 0, domain.ErrDuplicateBuzz
	}

	ts := a.clock.Now().UnixMilli()
	w.seen[p] = struct{}{}
	w.arrivals = append(w.arrivals, arrival{participant: p, serverTime: ts})

	metrics.BuzzArrivalsTotal.WithLabelValues("accepted").Inc()
	return ts, nil
}

// Resolve locks the window and computes the ranked result. Concurrent
// and repeated calls collapse onto the first computation: the window's
// own state transition serializes them and later callers get the
// cached resolution. A window with no arrivals still locks and yields
// an empty resolution.
func (a *Arbiter) Resolve(ctx context.Context, sessionID, questionID int64) (*domain.Resolution, error) {
	w := a.lookup(sessionID, questionID)
	if w == nil {
		return nil, domain.ErrWindowNotOpen
	}

	w.mu.Lock()
	switch w.state {
	case stateLocked:
		res := w.resolution
		w.mu.Unlock()
		return res, nil
	case stateClosed:
		w.mu.Unlock()
		return nil, domain.ErrWindowNotOpen
	}

	start := a.clock.Now()
	res, included := a.rank(sessionID, questionID, w.arrivals)
	w.state = stateLocked
	w.resolution = res
	w.mu.Unlock()

	metrics.BuzzResolveDuration.Observe(a.clock.Since(start).Seconds())
	metrics.BuzzResolutionsTotal.WithLabelValues("resolved").Inc()
	slog.Info("buzz window resolved",
		"session_id", sessionID,
		"question_id", questionID,
		"qualified", len(res.Entries),
	)

	a.persist(ctx, included)
	return res, nil
}

// CloseWindow shuts an open window without computing a resolution,
// used when a question is abandoned.
func (a *Arbiter) CloseWindow(sessionID, questionID int64) error {
	w := a.lookup(sessionID, questionID)
	if w == nil {
		return domain.ErrWindowNotOpen
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != stateOpen {
		return domain.ErrWindowNotOpen
	}
	w.state = stateClosed

	metrics.BuzzResolutionsTotal.WithLabelValues("closed").Inc()
	slog.Info("buzz window closed", "session_id", sessionID, "question_id", questionID)
	return nil
}

// Result returns the cached resolution for a locked window.
func (a *Arbiter) Result(sessionID, questionID int64) (*domain.Resolution, error) {
	w := a.lookup(sessionID, questionID)
	if w == nil {
		return nil, domain.ErrNoResolution
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.resolution == nil {
		return nil, domain.ErrNoResolution
	}
	return w.resolution, nil
}

// DropSession discards every window belonging to a session. Called when
// the session finishes; window lifetime is tied to session lifecycle,
// not to any cache expiry.
func (a *Arbiter) DropSession(sessionID int64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for key := range a.windows {
		if key.sessionID == sessionID {
			delete(a.windows, key)
		}
	}
}

func (a *Arbiter) lookup(sessionID, questionID int64) *window {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.windows[windowKey{sessionID, questionID}]
}

// rank orders arrivals by timestamp and keeps those within the tie
// window of the earliest. The threshold is measured strictly from the
// first arrival; a gap between qualifying entries does not extend it.
func (a *Arbiter) rank(sessionID, questionID int64, arrivals []arrival) (*domain.Resolution, []domain.BuzzRecord) {
	res := &domain.Resolution{
		SessionID:  sessionID,
		QuestionID: questionID,
		Entries:    []domain.BuzzEntry{},
	}
	if len(arrivals) == 0 {
		return res, nil
	}

	sorted := make([]arrival, len(arrivals))
	copy(sorted, arrivals)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].serverTime < sorted[j].serverTime
	})

	t0 := sorted[0].serverTime
	limit := t0 + a.tieWindow.Milliseconds()

	var included []domain.BuzzRecord
	for i, arr := range sorted {
		if arr.serverTime > limit {
			break
		}
		rank := i + 1
		res.Entries = append(res.Entries, domain.BuzzEntry{
			Rank:       rank,
			MemberID:   arr.participant.String(),
			ServerTime: arr.serverTime,
			IsFirst:    rank == 1,
		})
		included = append(included, domain.BuzzRecord{
			SessionID:   sessionID,
			QuestionID:  questionID,
			Participant: arr.participant,
			ServerTime:  arr.serverTime,
			Rank:        rank,
			IsFirst:     rank == 1,
		})
	}
	return res, included
}

// persist writes the qualifying arrivals to the durable log. Failures
// are logged and swallowed: the in-memory resolution has already been
// committed and stays authoritative.
func (a *Arbiter) persist(ctx context.Context, records []domain.BuzzRecord) {
	if a.logs == nil || len(records) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()

	for _, rec := range records {
		if err := a.logs.RecordBuzz(ctx, rec); err != nil {
			metrics.BuzzLogFailures.Inc()
			slog.Error("failed to record buzz log",
				"session_id", rec.SessionID,
				"question_id", rec.QuestionID,
				"member_id", rec.Participant.String(),
				"error", err,
			)
		}
	}
}
