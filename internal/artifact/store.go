// Package artifact tracks converted files under unguessable download handles
// and deletes them once their time-to-live has passed.
package artifact

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

// TTL is how long an artifact stays downloadable after registration.
const TTL = 4 * time.Minute

// Artifact is one converted file owned by the Store.
type Artifact struct {
	Handle     string
	OutputPath string
	// InputPath is the uploaded source, deleted together with the output.
	InputPath string
	Requester string
	// DisplayName is the file name offered to the client on download.
	DisplayName string
	Pages       int
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Remaining returns the time left before expiry at now, never negative.
func (a Artifact) Remaining(now time.Time) time.Duration {
	if d := a.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Registration describes a successful conversion to be tracked.
type Registration struct {
	OutputPath  string
	InputPath   string
	Requester   string
	DisplayName string
	Pages       int
}

// Store is the in-memory handle registry. A single mutex serialises every
// operation; eviction deletes the backing files and the map entry while
// holding it, so no caller can observe one without the other.
//
// Observers are notified in the order changes were applied and must not call
// back into the Store.
type Store struct {
	mu        sync.Mutex
	// notifyMu is taken before mu is released so events leave in lock order.
	notifyMu  sync.Mutex
	entries   map[string]Artifact
	now       func() time.Time
	remove    func(path string) error
	observers []Observer
	logger    *observability.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRemover replaces os.Remove for backing-file deletion.
func WithRemover(remove func(path string) error) Option {
	return func(s *Store) { s.remove = remove }
}

// WithObserver adds a lifecycle event observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observers = append(s.observers, o) }
}

// WithLogger sets the store logger.
func WithLogger(l *observability.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]Artifact),
		now:     time.Now,
		remove:  os.Remove,
		logger:  observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithOperation("artifact-store")
	return s
}

// Register starts tracking a converted file and returns its artifact.
// It performs no file I/O.
func (s *Store) Register(reg Registration) (Artifact, error) {
	if reg.OutputPath == "" {
		return Artifact{}, domain.StorageError("cannot register an artifact without an output file", nil)
	}

	var a Artifact
	s.apply(func() []Event {
		now := s.now()
		handle := NewHandle(reg.OutputPath, now)
		for _, taken := s.entries[handle]; taken; _, taken = s.entries[handle] {
			handle = NewHandle(reg.OutputPath, now)
		}
		a = Artifact{
			Handle:      handle,
			OutputPath:  reg.OutputPath,
			InputPath:   reg.InputPath,
			Requester:   reg.Requester,
			DisplayName: reg.DisplayName,
			Pages:       reg.Pages,
			CreatedAt:   now,
			ExpiresAt:   now.Add(TTL),
		}
		s.entries[handle] = a

		s.logger.Info().
			Str("handle", fingerprint(handle)).
			Str("requester", reg.Requester).
			Time("expires_at", a.ExpiresAt).
			Msg("Artifact registered")
		return []Event{{Type: EventRegistered, Handle: fingerprint(handle), Active: len(s.entries), At: now}}
	})
	return a, nil
}

// Lookup returns the live artifact for handle. An expired entry is evicted
// on the spot and reported as not found.
func (s *Store) Lookup(handle string) (Artifact, error) {
	a, _, err := s.live(handle)
	return a, err
}

// Status returns the live artifact and its remaining lifetime.
func (s *Store) Status(handle string) (Artifact, time.Duration, error) {
	return s.live(handle)
}

func (s *Store) live(handle string) (Artifact, time.Duration, error) {
	var (
		a   Artifact
		ok  bool
		now time.Time
	)
	s.apply(func() []Event {
		a, ok = s.entries[handle]
		if !ok {
			return nil
		}
		now = s.now()
		if expired(a, now) {
			ok = false
			return []Event{s.evictLocked(a, ReasonLookup, now)}
		}
		return nil
	})
	if !ok {
		return Artifact{}, 0, domain.NotFoundError("File not found or expired")
	}
	return a, a.Remaining(now), nil
}

// Evict deletes the artifact's files and forgets the handle. Evicting an
// unknown handle is a no-op. It reports whether an entry was removed.
func (s *Store) Evict(handle string) bool {
	events := s.apply(func() []Event {
		a, ok := s.entries[handle]
		if !ok {
			return nil
		}
		return []Event{s.evictLocked(a, ReasonManual, s.now())}
	})
	return len(events) > 0
}

// Sweep evicts every expired artifact and returns how many were removed.
func (s *Store) Sweep() int {
	events := s.apply(func() []Event {
		now := s.now()
		var events []Event
		for _, a := range s.entries {
			if expired(a, now) {
				events = append(events, s.evictLocked(a, ReasonSweep, now))
			}
		}
		return events
	})
	return len(events)
}

// Len returns the number of tracked artifacts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func expired(a Artifact, now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// apply runs change under s.mu and then delivers the events it returned.
func (s *Store) apply(change func() []Event) []Event {
	events := s.locked(change)
	if len(events) == 0 {
		return nil
	}
	defer s.notifyMu.Unlock()
	for _, ev := range events {
		s.notify(ev)
	}
	return events
}

// locked returns with notifyMu held whenever change produced events. A panic
// in change releases mu and leaves notifyMu untouched.
func (s *Store) locked(change func() []Event) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := change()
	if len(events) > 0 {
		s.notifyMu.Lock()
	}
	return events
}

// evictLocked must be called with s.mu held. The entry is forgotten first;
// file deletion is best effort: a missing file is fine, any other failure is
// logged.
func (s *Store) evictLocked(a Artifact, reason string, now time.Time) Event {
	delete(s.entries, a.Handle)
	ev := Event{Type: EventEvicted, Handle: fingerprint(a.Handle), Reason: reason, Active: len(s.entries), At: now}

	for _, path := range []string{a.OutputPath, a.InputPath} {
		if path == "" {
			continue
		}
		if err := s.remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Error().
				Str("handle", fingerprint(a.Handle)).
				Str("path", path).
				Err(err).
				Msg("Failed to delete artifact file")
		}
	}

	s.logger.Info().
		Str("handle", fingerprint(a.Handle)).
		Str("reason", reason).
		Msg("Artifact evicted")
	return ev
}

func (s *Store) notify(ev Event) {
	for _, o := range s.observers {
		o.Notify(ev)
	}
}
