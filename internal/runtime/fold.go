package runtime

import (
	"fmt"
	"time"

	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
)

// stateFold applies the reducer to every action it is handed and publishes
// the resulting transitions on a hot subject that replays the latest one.
// It is only ever stepped by the drainer of its action channel.
type stateFold[S, A any] struct {
	reducer Reducer[S, A]
	state   S
	seq     uint64
	subject *stream.ReplaySubject[Transition[S, A]]

	// observe is called after every successful reduction, before subscribers
	// are notified.
	observe func(t Transition[S, A], took time.Duration)
}

func newStateFold[S, A any](reducer Reducer[S, A], initial S) *stateFold[S, A] {
	return &stateFold[S, A]{
		reducer: reducer,
		state:   initial,
		subject: stream.NewBehaviorSubject(Transition[S, A]{State: initial}),
	}
}

func (f *stateFold[S, A]) step(action A) error {
	start := time.Now()
	next, err := f.apply(action)
	if err != nil {
		return &domain.Fault{
			Kind:       domain.ReducerFault,
			ActionType: domain.TypeOf(action),
			Err:        err,
		}
	}
	f.seq++
	f.state = next
	t := Transition[S, A]{Seq: f.seq, Action: action, State: next}
	if f.observe != nil {
		f.observe(t, time.Since(start))
	}
	f.subject.Next(t)
	return nil
}

func (f *stateFold[S, A]) apply(action A) (next S, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", domain.ErrReducerPanic, r)
		}
	}()
	return f.reducer(f.state, action)
}

func (f *stateFold[S, A]) fail(err error) {
	f.subject.Error(err)
}

func (f *stateFold[S, A]) complete() {
	f.subject.Complete()
}

func (f *stateFold[S, A]) transitions() stream.Observable[Transition[S, A]] {
	return f.subject
}

// states is the state view: the seed first, then one state per action.
func (f *stateFold[S, A]) states() stream.Observable[S] {
	return stream.Map(f.transitions(), func(t Transition[S, A]) S {
		return t.State
	})
}

// actions is the action view: for every reduction, exactly the action that
// produced it. The seed carries no action and is skipped.
func (f *stateFold[S, A]) actions() stream.Observable[A] {
	reductions := stream.Filter(f.transitions(), func(t Transition[S, A]) bool {
		return !t.Seed()
	})
	return stream.Map(reductions, func(t Transition[S, A]) A {
		return t.Action
	})
}
