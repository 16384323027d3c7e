package kvs

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// batch carries the listeners registered when it was emitted: a listener
// added later does not see older commits.
type batch struct {
	set     []Entry
	del     []string
	sets    []*setHandler
	deletes []*deleteHandler
}

type setHandler struct {
	id        int
	fn        func([]Entry)
	cancelled atomic.Bool
}

type deleteHandler struct {
	id        int
	fn        func([]string)
	cancelled atomic.Bool
}

// Emitter implements Events for backends.
//
// Backends push committed batches with EmitSet and EmitDelete from any
// goroutine; batches are queued and handed to listeners by one dispatcher
// goroutine, so emit order is delivery order and a slow listener never
// blocks a write. A batch goes to the listeners registered when it was
// emitted, minus those cancelled before it is delivered.
type Emitter struct {
	mu      sync.Mutex
	nextID  int
	sets    []*setHandler
	deletes []*deleteHandler
	queue   []batch
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	onPanic func(error)
}

// NewEmitter starts the dispatcher. onPanic, if set, receives listener
// panics; the dispatcher keeps running after one.
func NewEmitter(onPanic func(error)) *Emitter {
	e := &Emitter{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		onPanic: onPanic,
	}
	go e.run()
	return e
}

// OnSet registers fn for set batches.
func (e *Emitter) OnSet(fn func([]Entry)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.sets = append(e.sets, &setHandler{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.sets {
			if h.id == id {
				h.cancelled.Store(true)
				e.sets = append(e.sets[:i:i], e.sets[i+1:]...)
				return
			}
		}
	}
}

// OnDelete registers fn for delete batches.
func (e *Emitter) OnDelete(fn func([]string)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	id := e.nextID
	e.deletes = append(e.deletes, &deleteHandler{id: id, fn: fn})

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.deletes {
			if h.id == id {
				h.cancelled.Store(true)
				e.deletes = append(e.deletes[:i:i], e.deletes[i+1:]...)
				return
			}
		}
	}
}

// EmitSet queues a set batch. The slice is copied.
func (e *Emitter) EmitSet(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	cp := make([]Entry, len(entries))
	for i, en := range entries {
		cp[i] = Entry{Key: en.Key, Value: append([]byte(nil), en.Value...)}
	}
	e.enqueue(batch{set: cp})
}

// EmitDelete queues a delete batch. The slice is copied.
func (e *Emitter) EmitDelete(keys []string) {
	if len(keys) == 0 {
		return
	}
	e.enqueue(batch{del: append([]string(nil), keys...)})
}

func (e *Emitter) enqueue(b batch) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if b.set != nil {
		if len(e.sets) == 0 {
			e.mu.Unlock()
			return
		}
		b.sets = e.sets
	} else {
		if len(e.deletes) == 0 {
			e.mu.Unlock()
			return
		}
		b.deletes = e.deletes
	}
	e.queue = append(e.queue, b)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// Close delivers what is already queued, then stops the dispatcher.
func (e *Emitter) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		<-e.done
		return
	}
	e.closed = true
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
	<-e.done
}

func (e *Emitter) run() {
	defer close(e.done)

	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			closed := e.closed
			e.mu.Unlock()
			if closed {
				return
			}
			<-e.wake
			continue
		}

		b := e.queue[0]
		e.queue[0] = batch{}
		e.queue = e.queue[1:]
		e.mu.Unlock()

		if b.set != nil {
			for _, h := range b.sets {
				if !h.cancelled.Load() {
					e.call(func() { h.fn(b.set) })
				}
			}
		} else {
			for _, h := range b.deletes {
				if !h.cancelled.Load() {
					e.call(func() { h.fn(b.del) })
				}
			}
		}
	}
}

func (e *Emitter) call(fn func()) {
	defer func() {
		if r := recover(); r != nil && e.onPanic != nil {
			e.onPanic(fmt.Errorf("kvs listener: panic recovered: %v", r))
		}
	}()
	fn()
}
