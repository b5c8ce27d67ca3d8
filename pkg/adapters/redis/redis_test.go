package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/todo"
	"github.com/aretw0/rxstore/pkg/adapters/redis"
	"github.com/aretw0/rxstore/pkg/codec"
	"github.com/aretw0/rxstore/pkg/domain"
	"github.com/aretw0/rxstore/pkg/stream"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type latest struct {
	mu    sync.Mutex
	state todo.State
	err   error
}

func (l *latest) observer() stream.Observer[todo.State] {
	return stream.Observer[todo.State]{
		Next: func(s todo.State) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.state = s
		},
		Error: func(err error) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.err = err
		},
	}
}

func (l *latest) items() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.Items)
}

func (l *latest) failure() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func subscribers(t *testing.T, client *backend.Client, channel string) int64 {
	t.Helper()
	counts, err := client.PubSubNumSub(context.Background(), channel).Result()
	require.NoError(t, err)
	return counts[channel]
}

func TestSource_PublishedActionsReachTheStore(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()

	source := redis.NewSource[todo.State](client, "todo:actions", todo.Registry())
	assert.True(t, source.Middleware().Source, "published actions are not feedback")
	store := rxstore.New(todo.Reduce, todo.Initial(),
		[]rxstore.Middleware[todo.State, todo.Action]{source.Middleware()},
		rxstore.WithCascadeLimit(1),
	)

	// Nothing subscribes before the store is activated.
	assert.Zero(t, subscribers(t, client, "todo:actions"))

	l := &latest{}
	sub := store.Subscribe(l.observer())
	assert.Equal(t, int64(1), subscribers(t, client, "todo:actions"))

	for _, id := range []string{"a", "b"} {
		env, err := codec.Encode(todo.TypeCreateItem, todo.CreateItem{ID: id})
		require.NoError(t, err)
		require.NoError(t, redis.Publish(ctx, client, "todo:actions", env))
	}
	require.NoError(t, client.Publish(ctx, "todo:actions", "not json").Err())
	require.NoError(t, redis.Publish(ctx, client, "todo:actions", codec.Envelope{
		Type:    todo.TypeCreateItem,
		Payload: map[string]any{"id": "c"},
	}))

	assert.Eventually(t, func() bool { return l.items() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.NoError(t, l.failure(), "undecodable messages are dropped")

	sub.Unsubscribe()
	assert.Eventually(t, func() bool {
		return subscribers(t, client, "todo:actions") == 0
	}, 2*time.Second, 10*time.Millisecond, "teardown must release the redis subscription")
}

func TestSource_StrictDecodingFailsTheStore(t *testing.T) {
	_, client := newClient(t)

	source := redis.NewSource[todo.State](client, "todo:strict", todo.Registry(), redis.WithStrictDecoding())
	store := rxstore.New(todo.Reduce, todo.Initial(), []rxstore.Middleware[todo.State, todo.Action]{source.Middleware()})

	l := &latest{}
	store.Subscribe(l.observer())
	require.NoError(t, client.Publish(context.Background(), "todo:strict", `{"type":"UNKNOWN"}`).Err())

	require.Eventually(t, func() bool { return l.failure() != nil }, 2*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, l.failure(), codec.ErrUnknownType)
	assert.Equal(t, domain.MiddlewareFault, domain.KindOf(l.failure()))
}

func TestSource_UnreachableServerFailsActivation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := backend.NewClient(&backend.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	defer client.Close()
	mr.Close()

	source := redis.NewSource[todo.State](client, "todo:actions", todo.Registry())
	store := rxstore.New(todo.Reduce, todo.Initial(), []rxstore.Middleware[todo.State, todo.Action]{source.Middleware()})

	l := &latest{}
	store.Subscribe(l.observer())

	require.Error(t, l.failure())
	assert.Contains(t, l.failure().Error(), "failed to subscribe to todo:actions")
}

func TestSnapshotStore(t *testing.T) {
	mr, client := newClient(t)
	ctx := context.Background()
	snapshots := redis.NewSnapshotStore[todo.State](client, redis.WithPrefix("test:"), redis.WithTTL(time.Minute))

	_, err := snapshots.Load(ctx, "list")
	assert.ErrorIs(t, err, redis.ErrSnapshotNotFound)

	fallback, err := snapshots.LoadOr(ctx, "list", todo.Initial())
	require.NoError(t, err)
	assert.Equal(t, todo.Initial(), fallback)

	state := todo.State{Items: []todo.Item{{ID: "x", Value: "milk"}}}
	require.NoError(t, snapshots.Save(ctx, "list", state))
	assert.True(t, mr.Exists("test:snapshot:list"))

	loaded, err := snapshots.Load(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)

	mr.FastForward(2 * time.Minute)
	_, err = snapshots.Load(ctx, "list")
	assert.ErrorIs(t, err, redis.ErrSnapshotNotFound)

	require.NoError(t, snapshots.Save(ctx, "list", state))
	require.NoError(t, snapshots.Delete(ctx, "list"))
	assert.False(t, mr.Exists("test:snapshot:list"))
}

func TestPersist(t *testing.T) {
	_, client := newClient(t)
	ctx := context.Background()
	snapshots := redis.NewSnapshotStore[todo.State](client)

	d := rxstore.NewDispatcher[todo.State, todo.Action]()
	store := rxstore.New(todo.Reduce, todo.Initial(), []rxstore.Middleware[todo.State, todo.Action]{
		d.Middleware(),
		redis.Persist[todo.State, todo.Action](snapshots, "list"),
	})

	sub := store.Subscribe(stream.Observer[todo.State]{})
	require.NoError(t, d.Dispatch(todo.CreateItem{ID: "a"}))
	require.NoError(t, d.Dispatch(todo.CreateItem{ID: "b"}))
	sub.Unsubscribe()

	saved, err := snapshots.Load(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, todo.State{Items: []todo.Item{{ID: "a"}, {ID: "b"}}}, saved)

	// A new activation can resume from the snapshot.
	resumed := rxstore.New(todo.Reduce, saved, nil)
	l := &latest{}
	resumed.Subscribe(l.observer()).Unsubscribe()
	assert.Equal(t, 2, l.items())
}

func TestLocker_LockUnlock(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "list", 5*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:lock:list"), "Lock key should be set in Redis")

	// A second holder times out while the lock is held.
	busyCtx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(busyCtx, "list", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:list"), "Lock key should be removed after unlock")

	unlock, err = locker.Lock(ctx, "list", 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, unlock(ctx))
}

func TestLocker_Expiration(t *testing.T) {
	mr, client := newClient(t)
	locker := redis.NewLocker(client)
	ctx := context.Background()

	_, err := locker.Lock(ctx, "list", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	unlock, err := locker.Lock(ctx, "list", time.Second)
	require.NoError(t, err, "an expired lock can be taken over")
	require.NoError(t, unlock(ctx))
}
