package stream

import "sync"

// Map transforms every value of src with fn.
func Map[T, U any](src Observable[T], fn func(T) U) Observable[U] {
	return Func[U](func(o Observer[U]) Subscription {
		return src.Subscribe(Observer[T]{
			Next:     func(v T) { o.OnNext(fn(v)) },
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
	})
}

// Filter forwards the values of src for which keep returns true.
func Filter[T any](src Observable[T], keep func(T) bool) Observable[T] {
	return Func[T](func(o Observer[T]) Subscription {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				if keep(v) {
					o.OnNext(v)
				}
			},
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
	})
}

// FlatMap expands every value of src into zero or more values, emitted
// synchronously and in order.
func FlatMap[T, U any](src Observable[T], fn func(T) []U) Observable[U] {
	return Func[U](func(o Observer[U]) Subscription {
		return src.Subscribe(Observer[T]{
			Next: func(v T) {
				for _, u := range fn(v) {
					o.OnNext(u)
				}
			},
			Error:    o.OnError,
			Complete: o.OnComplete,
		})
	})
}

// Merge interleaves the values of every source by arrival. It completes once
// all sources completed and fails as soon as one of them fails, releasing the
// others.
func Merge[T any](sources ...Observable[T]) Observable[T] {
	return Create(func(o Observer[T]) Teardown {
		if len(sources) == 0 {
			o.OnComplete()
			return nil
		}
		var (
			mu        sync.Mutex
			subs      = make([]Subscription, 0, len(sources))
			remaining = len(sources)
		)
		for _, src := range sources {
			sub := src.Subscribe(Observer[T]{
				Next:  o.OnNext,
				Error: o.OnError,
				Complete: func() {
					mu.Lock()
					remaining--
					last := remaining == 0
					mu.Unlock()
					if last {
						o.OnComplete()
					}
				},
			})
			mu.Lock()
			subs = append(subs, sub)
			mu.Unlock()
		}
		return func() {
			mu.Lock()
			held := subs
			subs = nil
			mu.Unlock()
			for _, sub := range held {
				sub.Unsubscribe()
			}
		}
	})
}

// Of emits vs synchronously, then completes.
func Of[T any](vs ...T) Observable[T] {
	return Create(func(o Observer[T]) Teardown {
		for _, v := range vs {
			o.OnNext(v)
		}
		o.OnComplete()
		return nil
	})
}

// Empty completes immediately.
func Empty[T any]() Observable[T] {
	return Of[T]()
}

// Never emits nothing and never terminates.
func Never[T any]() Observable[T] {
	return Func[T](func(Observer[T]) Subscription {
		return SubscriptionFunc(nil)
	})
}

// Throw fails immediately with err.
func Throw[T any](err error) Observable[T] {
	return Create(func(o Observer[T]) Teardown {
		o.OnError(err)
		return nil
	})
}

// FromChan forwards the values received on ch from a dedicated goroutine
// and completes when ch is closed. Unsubscribing stops the goroutine; it does
// not close ch.
func FromChan[T any](ch <-chan T) Observable[T] {
	return Create(func(o Observer[T]) Teardown {
		done := make(chan struct{})
		go func() {
			for {
				select {
				case <-done:
					return
				case v, ok := <-ch:
					if !ok {
						o.OnComplete()
						return
					}
					o.OnNext(v)
				}
			}
		}()
		return func() { close(done) }
	})
}
