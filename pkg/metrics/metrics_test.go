package metrics_test

import (
	"strings"
	"testing"

	"github.com/aretw0/rxstore"
	"github.com/aretw0/rxstore/internal/todo"
	"github.com/aretw0/rxstore/pkg/metrics"
	"github.com/aretw0/rxstore/pkg/stream"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func count(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	return n
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("rxstore")
	require.NoError(t, collector.Register(reg))

	d := rxstore.NewDispatcher[todo.State, todo.Action]()
	store := rxstore.New(todo.Reduce, todo.Initial(),
		[]rxstore.Middleware[todo.State, todo.Action]{d.Middleware(), todo.AutoDelete()},
		rxstore.WithName("todo"),
		rxstore.WithHooks(collector.Hooks()),
	)

	sub := store.Subscribe(stream.Observer[todo.State]{})
	require.NoError(t, d.Dispatch(todo.CreateItem{ID: "x"}))

	expected := `
# HELP rxstore_actions_total Total number of actions folded
# TYPE rxstore_actions_total counter
rxstore_actions_total{action_type="CREATE_ITEM",store="todo"} 1
rxstore_actions_total{action_type="DELETE_ITEM",store="todo"} 1
# HELP rxstore_active_activations Number of activations currently running
# TYPE rxstore_active_activations gauge
rxstore_active_activations{store="todo"} 1
# HELP rxstore_activations_total Total number of store activations
# TYPE rxstore_activations_total counter
rxstore_activations_total{store="todo"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"rxstore_actions_total", "rxstore_active_activations", "rxstore_activations_total"))
	assert.Equal(t, 1, count(t, reg, "rxstore_fold_duration_seconds"))

	sub.Unsubscribe()
	assert.Equal(t, 0, count(t, reg, "rxstore_faults_total"), "unsubscribing is not a fault")

	expected = `
# HELP rxstore_active_activations Number of activations currently running
# TYPE rxstore_active_activations gauge
rxstore_active_activations{store="todo"} 0
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rxstore_active_activations"))
}

func TestCollector_Faults(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("rxstore")
	collector.MustRegister(reg)

	d := rxstore.NewDispatcher[todo.State, todo.Action]()
	store := rxstore.New(todo.Reduce, todo.Initial(),
		[]rxstore.Middleware[todo.State, todo.Action]{d.Middleware()},
		rxstore.WithName("todo"),
		rxstore.WithHooks(collector.Hooks()),
	)

	store.Subscribe(stream.Observer[todo.State]{})
	require.NoError(t, d.Dispatch(todo.DeleteItem{ID: "ghost"}))

	expected := `
# HELP rxstore_faults_total Total number of activations stopped by a fault
# TYPE rxstore_faults_total counter
rxstore_faults_total{kind="reducer",store="todo"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "rxstore_faults_total"))
	assert.Equal(t, 0, count(t, reg, "rxstore_actions_total"))
}

func TestCollector_RegisterTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("rxstore")
	require.NoError(t, collector.Register(reg))
	assert.Error(t, collector.Register(reg))
}
