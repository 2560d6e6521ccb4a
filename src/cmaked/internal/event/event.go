// Package event provides a typed notification primitive with a per-subscription replay policy,
// and owned lists of subscription handles that are released exactly once.
package event

import (
	"sync"
)

// ReplayPolicy selects what a new subscriber receives.
type ReplayPolicy int

const (
	// FireLate delivers only values fired after Subscribe returns.
	FireLate ReplayPolicy = iota
	// FireNow delivers the most recent value, if one was ever fired, followed by every later value.
	// The replay happens before Subscribe returns unless the emitter is already delivering.
	FireNow
)

// Disposable releases a resource. Dispose may be called more than once; only the first call has an effect.
type Disposable interface {
	Dispose()
}

// Source is the subscribe-only view of an Emitter.
type Source[T any] interface {
	Subscribe(policy ReplayPolicy, fn func(T)) Disposable
}

type listener[T any] struct {
	id uint64
	// from is the sequence number current when the listener subscribed.
	from uint64
	fn   func(T)
}

type delivery[T any] struct {
	seq uint64
	v   T
	// target restricts a replay to one listener. Zero means every listener.
	target uint64
}

// Emitter fans a value out to its subscribers in subscription order.
// Deliveries are serialized in the order values were fired: the goroutine that finds the emitter idle
// delivers its value and every value queued meanwhile, so a Fire or FireNow Subscribe issued by a listener
// or by a concurrent goroutine is delivered after the current delivery finishes.
// Listeners run without the emitter's lock held, so a listener may subscribe, unsubscribe or fire.
// The zero value is ready to use.
type Emitter[T any] struct {
	mu         sync.Mutex
	nextID     uint64
	seq        uint64
	listeners  []listener[T]
	last       T
	fired      bool
	queue      []delivery[T]
	delivering bool
}

var _ Source[int] = (*Emitter[int])(nil)

// Subscribe registers fn and returns the handle that unregisters it.
func (e *Emitter[T]) Subscribe(policy ReplayPolicy, fn func(T)) Disposable {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, from: e.seq, fn: fn})
	drain := false
	if policy == FireNow && e.fired {
		drain = e.enqueueLocked(delivery[T]{seq: e.seq, v: e.last, target: id})
	}
	e.mu.Unlock()

	if drain {
		e.drain()
	}
	return OnDispose(func() { e.unsubscribe(id) })
}

// Fire records v as the latest value and delivers it to the current subscribers.
func (e *Emitter[T]) Fire(v T) {
	e.mu.Lock()
	e.seq++
	e.last = v
	e.fired = true
	drain := e.enqueueLocked(delivery[T]{seq: e.seq, v: v})
	e.mu.Unlock()

	if drain {
		e.drain()
	}
}

// enqueueLocked queues d and reports whether the caller must deliver the queue.
func (e *Emitter[T]) enqueueLocked(d delivery[T]) bool {
	e.queue = append(e.queue, d)
	if e.delivering {
		return false
	}
	e.delivering = true
	return true
}

func (e *Emitter[T]) drain() {
	finished := false
	defer func() {
		if !finished {
			// A listener panicked; let the next Fire deliver what is left.
			e.mu.Lock()
			e.delivering = false
			e.mu.Unlock()
		}
	}()

	for {
		e.mu.Lock()
		if len(e.queue) == 0 {
			e.delivering = false
			e.mu.Unlock()
			finished = true
			return
		}
		d := e.queue[0]
		e.queue = e.queue[1:]
		var targets []func(T)
		for _, l := range e.listeners {
			if d.target == l.id || (d.target == 0 && d.seq > l.from) {
				targets = append(targets, l.fn)
			}
		}
		e.mu.Unlock()

		for _, fn := range targets {
			fn(d.v)
		}
	}
}

// Last returns the most recently fired value.
func (e *Emitter[T]) Last() (T, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last, e.fired
}

// Len returns the number of live subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

func (e *Emitter[T]) unsubscribe(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

type disposeFunc struct {
	once sync.Once
	fn   func()
}

func (d *disposeFunc) Dispose() {
	d.once.Do(d.fn)
}

// OnDispose returns a Disposable that runs fn on its first Dispose call.
func OnDispose(fn func()) Disposable {
	return &disposeFunc{fn: fn}
}

// Disposables is an owned list of handles released together, in reverse order of addition.
// Handles added after Dispose are released immediately.
type Disposables struct {
	mu       sync.Mutex
	items    []Disposable
	disposed bool
}

// Add takes ownership of items.
func (d *Disposables) Add(items ...Disposable) {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		for _, item := range items {
			item.Dispose()
		}
		return
	}
	d.items = append(d.items, items...)
	d.mu.Unlock()
}

// Dispose releases every owned handle once.
func (d *Disposables) Dispose() {
	d.mu.Lock()
	if d.disposed {
		d.mu.Unlock()
		return
	}
	d.disposed = true
	items := d.items
	d.items = nil
	d.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		items[i].Dispose()
	}
}

// Len returns the number of handles still owned.
func (d *Disposables) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}
