package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Fetcher is the retrieval operation a Session drives.
type Fetcher interface {
	Fetch(ctx context.Context, hoursWindow int, ranges []domain.MagnitudeRange) ([]domain.Earthquake, error)
}

// Status is the lifecycle of the latest retrieval.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusLoaded  Status = "loaded"
	StatusEmpty   Status = "empty"
	StatusFailed  Status = "failed"
)

// State is a snapshot of a session's selection and latest result.
type State struct {
	Selection   domain.Selection    `json:"selection"`
	TimeLabel   string              `json:"time_label"`
	Status      Status              `json:"status"`
	Earthquakes []domain.Earthquake `json:"earthquakes"`
	Error       string              `json:"error,omitempty"`
	Generation  uint64              `json:"generation"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// Session holds one consumer's selection and applies "latest wins" to
// retrievals: starting a refresh cancels the one in flight, and only the
// newest generation may publish its result.
type Session struct {
	fetcher Fetcher
	clock   clockwork.Clock
	logger  *slog.Logger

	mu        sync.Mutex
	gen       uint64
	cancel    context.CancelFunc
	settled   chan struct{}
	state     State
	publishes int
}

// NewSession creates an idle session with the default selection.
func NewSession(fetcher Fetcher, clock clockwork.Clock, logger *slog.Logger) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sel := domain.Selection{}
	return &Session{
		fetcher: fetcher,
		clock:   clock,
		logger:  logger,
		state: State{
			Selection: sel,
			TimeLabel: sel.TimeLabel(),
			Status:    StatusIdle,
		},
	}
}

// Selection returns the current selection.
func (s *Session) Selection() domain.Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Selection
}

// Update applies fn to the current selection and refreshes with the result.
// The read of the current selection and the start of the new generation
// happen under one lock, so concurrent updates never overwrite each other.
// fn must not call back into the session.
func (s *Session) Update(fn func(domain.Selection) domain.Selection) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(fn(s.state.Selection))
}

// Refresh cancels any retrieval in flight and starts one for sel. It returns
// the loading state of the new generation. An invalid selection leaves the
// session untouched.
func (s *Session) Refresh(sel domain.Selection) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(sel)
}

// refreshLocked must be called with mu held.
func (s *Session) refreshLocked(sel domain.Selection) (State, error) {
	hours, ranges, err := sel.Query()
	if err != nil {
		return State{}, err
	}

	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.settled = done
	s.state = State{
		Selection:  sel,
		TimeLabel:  sel.TimeLabel(),
		Status:     StatusLoading,
		Generation: gen,
		UpdatedAt:  s.clock.Now(),
	}

	go s.run(ctx, cancel, done, gen, hours, ranges)
	return s.snapshotLocked(), nil
}

func (s *Session) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}, gen uint64, hours int, ranges []domain.MagnitudeRange) {
	defer close(done)
	defer cancel()

	events, err := s.fetcher.Fetch(ctx, hours, ranges)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		return
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		// Canceled by Close; not a failure.
		s.state.Status = StatusIdle
		return
	}

	s.state.UpdatedAt = s.clock.Now()
	switch {
	case err != nil:
		s.logger.Warn("session refresh failed", "generation", gen, "error", err)
		s.state.Status = StatusFailed
		s.state.Error = userMessage(err)
	case len(events) == 0:
		s.state.Status = StatusEmpty
		s.state.Earthquakes = []domain.Earthquake{}
	default:
		s.state.Status = StatusLoaded
		s.state.Earthquakes = events
	}
	s.publishes++
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Wait blocks until the current generation settles or ctx is done, then
// returns the state. Superseded generations do not end the wait.
func (s *Session) Wait(ctx context.Context) (State, error) {
	for {
		s.mu.Lock()
		st := s.snapshotLocked()
		ch := s.settled
		s.mu.Unlock()

		if st.Status != StatusLoading || ch == nil {
			return st, nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

// Close cancels any retrieval in flight.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) snapshotLocked() State {
	st := s.state
	st.Earthquakes = slices.Clone(st.Earthquakes)
	st.Selection.Magnitudes = slices.Clone(st.Selection.Magnitudes)
	return st
}

// userMessage reduces a retrieval error to one short line.
func userMessage(err error) string {
	switch {
	case errors.Is(err, ErrFeedUnavailable):
		return "earthquake feed is unavailable, try again later"
	case errors.Is(err, ErrInvalidWindow):
		return "invalid time window"
	default:
		return "could not load earthquakes"
	}
}
