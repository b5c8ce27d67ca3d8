package rxstore_test

import (
	"errors"
	"fmt"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/middleware"
	"github.com/aretw0/rxstore/pkg/stream"
)

func deposit(balance, amount int) int {
	return balance + amount
}

// ExampleNew demonstrates feedback: a middleware answers every large deposit
// with a fee, which is folded right after the deposit that caused it.
func ExampleNew() {
	dispatcher := rxstore.NewDispatcher[int, int]()
	fee := middleware.Reactor[int]("fee", func(amount int) []int {
		if amount > 100 {
			return []int{-amount / 100}
		}
		return nil
	})

	store := rxstore.New(rxstore.Pure(deposit), 0, []rxstore.Middleware[int, int]{
		dispatcher.Middleware(),
		fee,
	})

	sub := store.Subscribe(stream.Observer[int]{
		Next: func(balance int) { fmt.Println("balance:", balance) },
	})
	defer sub.Unsubscribe()

	dispatcher.Dispatch(50)
	dispatcher.Dispatch(200)

	// Output:
	// balance: 0
	// balance: 50
	// balance: 250
	// balance: 248
}

// ExampleStore_Shared shows a late subscriber joining a running activation.
func ExampleStore_Shared() {
	dispatcher := rxstore.NewDispatcher[int, int]()
	store := rxstore.New(rxstore.Pure(deposit), 0, []rxstore.Middleware[int, int]{dispatcher.Middleware()})
	shared := store.Shared()

	first := shared.Subscribe(stream.Observer[int]{})
	defer first.Unsubscribe()
	dispatcher.Dispatch(10)
	dispatcher.Dispatch(20)

	late := shared.Subscribe(stream.Observer[int]{
		Next: func(balance int) { fmt.Println("late subscriber sees:", balance) },
	})
	defer late.Unsubscribe()
	dispatcher.Dispatch(5)

	// Output:
	// late subscriber sees: 30
	// late subscriber sees: 35
}

// ExampleDispatcher_Dispatch shows that actions are not buffered while no
// activation is running.
func ExampleDispatcher_Dispatch() {
	dispatcher := rxstore.NewDispatcher[int, int]()
	store := rxstore.New(rxstore.Pure(deposit), 0, []rxstore.Middleware[int, int]{dispatcher.Middleware()})

	err := dispatcher.Dispatch(10)
	fmt.Println("before subscribe:", errors.Is(err, domain.ErrNotActive))

	sub := store.Subscribe(stream.Observer[int]{})
	fmt.Println("while subscribed:", dispatcher.Dispatch(10))
	sub.Unsubscribe()

	// Output:
	// before subscribe: true
	// while subscribed: <nil>
}
