package middleware

import (
	"context"
	"log/slog"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
)

// Reactor emits, for every folded action, the actions returned by react.
// Returned actions are queued behind the one being folded.
func Reactor[S, A any](name string, react func(action A) []A) rxstore.Middleware[S, A] {
	return rxstore.Func(name, func(actions stream.Observable[A], _ stream.Observable[S]) stream.Observable[A] {
		return stream.FlatMap(actions, react)
	})
}

// OfType keeps the actions whose discriminant is one of types.
func OfType[A any](actions stream.Observable[A], types ...string) stream.Observable[A] {
	wanted := make(map[string]struct{}, len(types))
	for _, t := range types {
		wanted[t] = struct{}{}
	}
	return stream.Filter(actions, func(a A) bool {
		_, ok := wanted[domain.TypeOf(a)]
		return ok
	})
}

// Combine runs several middlewares as one: each is instantiated against the
// same views and their outputs are merged by arrival. The combination fails
// as soon as one of them fails and completes once all of them completed.
func Combine[S, A any](name string, mws ...rxstore.Middleware[S, A]) rxstore.Middleware[S, A] {
	return rxstore.Func(name, func(actions stream.Observable[A], states stream.Observable[S]) stream.Observable[A] {
		outs := make([]stream.Observable[A], 0, len(mws))
		for _, mw := range mws {
			if mw.Func == nil {
				continue
			}
			if out := mw.Func(actions, states); out != nil {
				outs = append(outs, out)
			}
		}
		return stream.Merge(outs...)
	})
}

// Logger logs every folded action and every state at the given level, and
// the terminal error of the store at Warn. It never emits.
func Logger[S, A any](logger *slog.Logger, level slog.Level) rxstore.Middleware[S, A] {
	return rxstore.Func("logger", func(actions stream.Observable[A], states stream.Observable[S]) stream.Observable[A] {
		return stream.Create(func(stream.Observer[A]) stream.Teardown {
			ctx := context.Background()
			var seq uint64
			actionSub := actions.Subscribe(stream.Observer[A]{
				Next: func(a A) {
					seq++
					logger.Log(ctx, level, "Action folded", "seq", seq, "type", domain.TypeOf(a))
				},
			})
			stateSub := states.Subscribe(stream.Observer[S]{
				Next: func(s S) {
					logger.Log(ctx, level, "State", "seq", seq, "state", s)
				},
				Error: func(err error) {
					logger.Warn("Store failed", "err", err, "kind", domain.KindOf(err))
				},
			})
			return func() {
				actionSub.Unsubscribe()
				stateSub.Unsubscribe()
			}
		})
	})
}
