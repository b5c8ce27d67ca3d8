package stream

import (
	"sync"
	"sync/atomic"
)

// Observer receives the notifications of an Observable.
// Any of the callbacks may be nil.
type Observer[T any] struct {
	Next     func(T)
	Error    func(error)
	Complete func()
}

// OnNext delivers a value.
func (o Observer[T]) OnNext(v T) {
	if o.Next != nil {
		o.Next(v)
	}
}

// OnError delivers a terminal error.
func (o Observer[T]) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

// OnComplete delivers successful termination.
func (o Observer[T]) OnComplete() {
	if o.Complete != nil {
		o.Complete()
	}
}

// Subscription releases the resources held by a subscription.
// Unsubscribe must be idempotent.
type Subscription interface {
	Unsubscribe()
}

// Observable is a push-based source of values.
type Observable[T any] interface {
	Subscribe(o Observer[T]) Subscription
}

// Func adapts a plain function to the Observable interface.
type Func[T any] func(o Observer[T]) Subscription

// Subscribe implements Observable.
func (f Func[T]) Subscribe(o Observer[T]) Subscription {
	return f(o)
}

// Teardown releases whatever a producer acquired when it was subscribed.
type Teardown func()

// SubscriptionFunc wraps fn so that it runs at most once.
func SubscriptionFunc(fn func()) Subscription {
	return &funcSubscription{fn: fn}
}

type funcSubscription struct {
	once sync.Once
	fn   func()
}

func (s *funcSubscription) Unsubscribe() {
	s.once.Do(func() {
		if s.fn != nil {
			s.fn()
		}
	})
}

// Create builds a cold Observable: produce runs once per subscriber.
//
// The observer handed to produce is guarded: after Error, Complete or
// Unsubscribe further notifications are dropped, and the returned Teardown
// runs exactly once, whichever of those happens first (or immediately, if the
// producer terminated before returning).
func Create[T any](produce func(o Observer[T]) Teardown) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		s := &subscriber[T]{dst: o}
		s.setTeardown(produce(s.observer()))
		return s
	})
}

type subscriber[T any] struct {
	dst    Observer[T]
	closed atomic.Bool

	mu       sync.Mutex
	teardown Teardown
	released bool
}

func (s *subscriber[T]) observer() Observer[T] {
	return Observer[T]{
		Next:     s.next,
		Error:    s.error,
		Complete: s.complete,
	}
}

func (s *subscriber[T]) next(v T) {
	if s.closed.Load() {
		return
	}
	s.dst.OnNext(v)
}

func (s *subscriber[T]) error(err error) {
	if s.closed.Swap(true) {
		return
	}
	s.dst.OnError(err)
	s.release()
}

func (s *subscriber[T]) complete() {
	if s.closed.Swap(true) {
		return
	}
	s.dst.OnComplete()
	s.release()
}

// Unsubscribe implements Subscription.
func (s *subscriber[T]) Unsubscribe() {
	s.closed.Store(true)
	s.release()
}

func (s *subscriber[T]) setTeardown(td Teardown) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		if td != nil {
			td()
		}
		return
	}
	s.teardown = td
	s.mu.Unlock()
}

func (s *subscriber[T]) release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	td := s.teardown
	s.teardown = nil
	s.mu.Unlock()
	if td != nil {
		td()
	}
}
