package stream

import (
	"sync"
	"sync/atomic"
)

type subjectEntry[T any] struct {
	obs    Observer[T]
	active atomic.Bool

	// Guarded by the subject lock. A pending entry is still receiving its
	// replay: values and the terminal event are held back until it ends.
	pending    bool
	buffered   []T
	terminated bool
	termErr    error
}

// Subject is a hot, multicast Observable that is also an Observer.
// Values pushed before anyone subscribes are dropped.
//
// Observers are notified in subscription order. Emissions are not serialized:
// callers pushing from several goroutines must provide their own ordering.
type Subject[T any] struct {
	mu        sync.Mutex
	observers []*subjectEntry[T]
	pending   int
	done      bool
	err       error
}

// NewSubject creates an empty Subject.
func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{}
}

// Subscribe implements Observable.
func (s *Subject[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	if s.done {
		err := s.err
		s.mu.Unlock()
		if err != nil {
			o.OnError(err)
		} else {
			o.OnComplete()
		}
		return SubscriptionFunc(nil)
	}
	e := s.add(o)
	s.mu.Unlock()
	return SubscriptionFunc(func() { s.remove(e) })
}

// add must be called with s.mu held.
func (s *Subject[T]) add(o Observer[T]) *subjectEntry[T] {
	e := &subjectEntry[T]{obs: o}
	e.active.Store(true)
	s.observers = append(s.observers, e)
	return e
}

func (s *Subject[T]) remove(e *subjectEntry[T]) {
	e.active.Store(false)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.observers {
		if cur == e {
			s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
			return
		}
	}
}

// HasObservers reports whether at least one observer is attached.
func (s *Subject[T]) HasObservers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.observers) > 0
}

// Next pushes v to every current observer.
func (s *Subject[T]) Next(v T) {
	s.TryNext(v)
}

// TryNext is Next reporting whether v reached at least one live observer.
// The observers are read in the same critical section that accepts v, so a
// false result means nobody was listening when v was pushed.
func (s *Subject[T]) TryNext(v T) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	targets, held := s.targets(v)
	s.mu.Unlock()
	return notify(targets, v) || held
}

// targets must be called with s.mu held. It returns the entries to notify
// now and buffers v for the pending ones, reporting whether it did.
func (s *Subject[T]) targets(v T) ([]*subjectEntry[T], bool) {
	if s.pending == 0 {
		return s.observers, false
	}
	held := false
	out := make([]*subjectEntry[T], 0, len(s.observers))
	for _, e := range s.observers {
		if e.pending {
			if e.active.Load() {
				e.buffered = append(e.buffered, v)
				held = true
			}
			continue
		}
		out = append(out, e)
	}
	return out, held
}

func notify[T any](entries []*subjectEntry[T], v T) bool {
	delivered := false
	for _, e := range entries {
		if e.active.Load() {
			e.obs.OnNext(v)
			delivered = true
		}
	}
	return delivered
}

// flush ends the replay of e: it delivers whatever was buffered meanwhile,
// then the terminal event if one arrived, and lets Next reach e directly.
func (s *Subject[T]) flush(e *subjectEntry[T]) {
	for {
		s.mu.Lock()
		buffered := e.buffered
		e.buffered = nil
		if len(buffered) > 0 {
			s.mu.Unlock()
			for _, v := range buffered {
				if e.active.Load() {
					e.obs.OnNext(v)
				}
			}
			continue
		}
		e.pending = false
		s.pending--
		terminated, err := e.terminated, e.termErr
		s.mu.Unlock()

		if terminated && e.active.Swap(false) {
			if err != nil {
				e.obs.OnError(err)
			} else {
				e.obs.OnComplete()
			}
		}
		return
	}
}

// Error terminates the Subject with err.
func (s *Subject[T]) Error(err error) {
	for _, e := range s.terminate(err) {
		e.obs.OnError(err)
	}
}

// Complete terminates the Subject successfully.
func (s *Subject[T]) Complete() {
	for _, e := range s.terminate(nil) {
		e.obs.OnComplete()
	}
}

func (s *Subject[T]) terminate(err error) []*subjectEntry[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done, s.err = true, err
	snapshot := s.observers
	s.observers = nil
	live := snapshot[:0:0]
	for _, e := range snapshot {
		if e.pending {
			e.terminated, e.termErr = true, err
			continue
		}
		if e.active.Swap(false) {
			live = append(live, e)
		}
	}
	return live
}

// Observer exposes the Subject as an Observer so it can be subscribed to
// another source.
func (s *Subject[T]) Observer() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}

// ReplaySubject is a Subject that remembers its latest value and replays it
// to every new subscriber before any subsequent value. Late subscribers never
// see anything older than the latest value.
type ReplaySubject[T any] struct {
	Subject[T]
	latest   T
	hasValue bool
}

// NewReplaySubject creates a ReplaySubject holding no value yet.
func NewReplaySubject[T any]() *ReplaySubject[T] {
	return &ReplaySubject[T]{}
}

// NewBehaviorSubject creates a ReplaySubject seeded with v.
func NewBehaviorSubject[T any](v T) *ReplaySubject[T] {
	return &ReplaySubject[T]{latest: v, hasValue: true}
}

// Subscribe implements Observable. The latest value, if any, is delivered
// synchronously before Subscribe returns. A terminated ReplaySubject still
// replays its last value before the terminal notification.
func (s *ReplaySubject[T]) Subscribe(o Observer[T]) Subscription {
	s.mu.Lock()
	latest, hasValue := s.latest, s.hasValue
	if s.done {
		err := s.err
		s.mu.Unlock()
		if hasValue {
			o.OnNext(latest)
		}
		if err != nil {
			o.OnError(err)
		} else {
			o.OnComplete()
		}
		return SubscriptionFunc(nil)
	}
	e := s.add(o)
	if !hasValue {
		s.mu.Unlock()
		return SubscriptionFunc(func() { s.remove(e) })
	}
	// Values pushed while the replay is in flight queue behind it.
	e.pending = true
	s.pending++
	s.mu.Unlock()

	if e.active.Load() {
		o.OnNext(latest)
	}
	s.flush(e)
	return SubscriptionFunc(func() { s.remove(e) })
}

// Next records v as the latest value and pushes it to every observer.
func (s *ReplaySubject[T]) Next(v T) {
	s.TryNext(v)
}

// TryNext is Next reporting whether v reached at least one live observer.
func (s *ReplaySubject[T]) TryNext(v T) bool {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return false
	}
	s.latest, s.hasValue = v, true
	targets, held := s.targets(v)
	s.mu.Unlock()
	return notify(targets, v) || held
}

// Value returns the latest value and whether there is one.
func (s *ReplaySubject[T]) Value() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.hasValue
}

// Observer exposes the ReplaySubject as an Observer.
func (s *ReplaySubject[T]) Observer() Observer[T] {
	return Observer[T]{Next: s.Next, Error: s.Error, Complete: s.Complete}
}
