package runtime

import (
	"sync"

	"github.com/aretw0/rxstore/pkg/domain"
)

type entryKind uint8

const (
	entryAction entryKind = iota
	entryError
	entryComplete
)

type entry[A any] struct {
	kind   entryKind
	action A
	err    error
	// depth is the length of the causal chain ending at this action:
	// 1 for a root action, one more than the action being folded for a
	// push made from inside its step.
	depth int
}

// actionChannel merges every producer of an activation into one FIFO and
// feeds it to the fold, one entry at a time.
//
// The goroutine that pushes onto an idle channel becomes the drainer and runs
// the fold until the queue is empty. Pushes made meanwhile, including
// reentrant ones from inside a fold step, are only queued. Terminal entries
// queue behind the actions submitted before them.
//
// The channel starts gated: entries pushed while the activation is still
// wiring itself are held until open is called.
//
// The cascade limit bounds the depth of a causal chain, not the length of a
// drain: actions queued by concurrent producers while the drainer is busy
// start chains of their own.
type actionChannel[A any] struct {
	step       func(A) error
	onError    func(error)
	onComplete func()
	limit      int

	mu       sync.Mutex
	queue    []entry[A]
	gated    bool
	draining bool
	stopped  bool
	stepping bool
	depth    int
}

func newActionChannel[A any](limit int, step func(A) error, onError func(error), onComplete func()) *actionChannel[A] {
	return &actionChannel[A]{
		step:       step,
		onError:    onError,
		onComplete: onComplete,
		limit:      limit,
		gated:      true,
	}
}

// push enqueues a feedback action. Pushed from inside a step, it extends the
// causal chain of the action being folded.
func (c *actionChannel[A]) push(action A) {
	c.enqueue(entry[A]{kind: entryAction, action: action, depth: -1})
}

// pushRoot enqueues an action that starts a new causal chain.
func (c *actionChannel[A]) pushRoot(action A) {
	c.enqueue(entry[A]{kind: entryAction, action: action, depth: 1})
}

func (c *actionChannel[A]) fail(err error) {
	c.enqueue(entry[A]{kind: entryError, err: err})
}

func (c *actionChannel[A]) complete() {
	c.enqueue(entry[A]{kind: entryComplete})
}

func (c *actionChannel[A]) enqueue(e entry[A]) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	if e.depth < 0 {
		e.depth = 1
		if c.stepping {
			e.depth = c.depth + 1
		}
	}
	c.queue = append(c.queue, e)
	if c.gated || c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()
	c.drain()
}

// open releases the gate and drains whatever was queued during wiring.
func (c *actionChannel[A]) open() {
	c.mu.Lock()
	c.gated = false
	if c.stopped || c.draining || len(c.queue) == 0 {
		c.mu.Unlock()
		return
	}
	c.draining = true
	c.mu.Unlock()
	c.drain()
}

// stop drops pending entries and refuses new ones.
func (c *actionChannel[A]) stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.queue = nil
}

func (c *actionChannel[A]) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *actionChannel[A]) next() (entry[A], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || len(c.queue) == 0 {
		c.draining = false
		return entry[A]{}, false
	}
	e := c.queue[0]
	c.queue[0] = entry[A]{}
	c.queue = c.queue[1:]
	return e, true
}

func (c *actionChannel[A]) setStepping(stepping bool, depth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stepping = stepping
	c.depth = depth
}

func (c *actionChannel[A]) drain() {
	for {
		e, ok := c.next()
		if !ok {
			return
		}
		switch e.kind {
		case entryError:
			c.stop()
			c.onError(e.err)
			return
		case entryComplete:
			c.stop()
			c.onComplete()
			return
		}

		if c.limit > 0 && e.depth > c.limit {
			c.stop()
			c.onError(&domain.Fault{
				Kind:       domain.CascadeFault,
				ActionType: domain.TypeOf(e.action),
				Err:        domain.ErrCascadeLimit,
			})
			return
		}
		c.setStepping(true, e.depth)
		err := c.step(e.action)
		c.setStepping(false, 0)
		if err != nil {
			c.stop()
			c.onError(err)
			return
		}
	}
}
