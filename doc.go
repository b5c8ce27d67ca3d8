/*
Package rxstore is a reactive state container: state is a running fold of a reducer over a stream of actions, and middlewares observe that fold and feed new actions back into it.

# Concept

A Store is a lazily activated stream of states. Nothing runs until the stream is subscribed. Each subscription builds one activation: an action channel that merges every producer in arrival order, a fold that applies the reducer to each action exactly once, and one instance of every middleware. Unsubscribing tears the activation down; subscribing again starts a fresh one from the initial state.

Middlewares receive two views of the fold: the stream of states and, paired with each state after the first, the action that produced it. Whatever a middleware emits goes back onto the action channel. An action emitted while a previous one is still being folded is queued and folded afterwards, so feedback never reorders or overlaps reductions.

# Key Features

  - Seeded: the first state of every activation is the initial state.
  - Hot: all consumers of an activation share one fold; Shared() exposes a ref-counted view that replays the latest state to late subscribers.
  - Deterministic teardown: feedback subscriptions are released before the state forwarding.
  - Explicit faults: reducer errors and panics, middleware errors and runaway feedback (see WithCascadeLimit) terminate the stream with a *domain.Fault.

# Usage

	dispatcher := rxstore.NewDispatcher[State, Action]()
	store := rxstore.New(rxstore.Pure(reduce), State{}, []rxstore.Middleware[State, Action]{
		dispatcher.Middleware(),
		rxstore.Func("audit", audit),
	})

	sub := store.Subscribe(stream.Observer[State]{
		Next:  func(s State) { log.Println("state:", s) },
		Error: func(err error) { log.Println("store failed:", err) },
	})
	defer sub.Unsubscribe()

	if err := dispatcher.Dispatch(CreateItem{ID: "x"}); err != nil {
		log.Fatal(err)
	}
*/
package rxstore
