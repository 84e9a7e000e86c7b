package boundary

import (
	"sync"

	"github.com/wippyai/ffi-bindgen/errors"
)

// Handle is an opaque reference to a value crossing the boundary.
// The low 32 bits are a slot index plus one, the high 32 bits the slot's
// generation. Handle 0 is reserved and always invalid.
type Handle uint64

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() int   { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32  { return uint32(h >> 32) }
func (h Handle) IsZero() bool { return h == 0 }

// EventType is a handle lifecycle event.
type EventType uint8

const (
	EventInserted EventType = iota
	EventRemoved
)

// Event is a handle lifecycle notification.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives handle lifecycle notifications.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnHandleEvent(e Event) { f(e) }

// Dropper is optionally implemented by values that need cleanup when
// their handle is removed.
type Dropper interface {
	Drop()
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// HandleMap stores values behind generation-tagged handles. A removed
// handle never resolves again, even after its slot is reused.
type HandleMap[T any] struct {
	what      string
	slots     []slot[T]
	freeList  []int
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewHandleMap creates a map whose errors name handles as what.
func NewHandleMap[T any](what string) *HandleMap[T] {
	return &HandleMap[T]{
		what:     what,
		slots:    make([]slot[T], 0, 64),
		freeList: make([]int, 0, 16),
	}
}

// Insert stores value and returns its handle.
func (m *HandleMap[T]) Insert(value T) (Handle, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errors.New(errors.PhaseRuntime, errors.KindNotInitialized).
			Detail("%s map closed", m.what).
			Build()
	}

	var idx int
	if n := len(m.freeList); n > 0 {
		idx = m.freeList[n-1]
		m.freeList = m.freeList[:n-1]
	} else {
		m.slots = append(m.slots, slot[T]{})
		idx = len(m.slots) - 1
	}
	s := &m.slots[idx]
	s.gen++
	s.value = value
	s.valid = true
	h := makeHandle(idx, s.gen)
	m.mu.Unlock()

	m.notify(Event{Type: EventInserted, Handle: h, Value: value})
	return h, nil
}

func (m *HandleMap[T]) lookup(h Handle) (*slot[T], bool) {
	idx := h.index()
	if h == 0 || idx < 0 || idx >= len(m.slots) {
		return nil, false
	}
	s := &m.slots[idx]
	if !s.valid || s.gen != h.gen() {
		return nil, false
	}
	return s, true
}

// Get returns the value behind h.
func (m *HandleMap[T]) Get(h Handle) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.lookup(h)
	if !ok {
		var zero T
		return zero, errors.StaleHandle(m.what, uint64(h))
	}
	return s.value, nil
}

// Remove releases h and returns its value. Values implementing Dropper
// are dropped.
func (m *HandleMap[T]) Remove(h Handle) (T, error) {
	var zero T
	m.mu.Lock()
	s, ok := m.lookup(h)
	if !ok {
		m.mu.Unlock()
		return zero, errors.StaleHandle(m.what, uint64(h))
	}
	value := s.value
	s.value = zero
	s.valid = false
	m.freeList = append(m.freeList, h.index())
	m.mu.Unlock()

	if d, ok := any(value).(Dropper); ok {
		d.Drop()
	}
	m.notify(Event{Type: EventRemoved, Handle: h, Value: value})
	return value, nil
}

// Len returns the number of live handles.
func (m *HandleMap[T]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.slots) - len(m.freeList)
}

// Each calls fn for every live handle until it returns false.
func (m *HandleMap[T]) Each(fn func(Handle, T) bool) {
	m.mu.RLock()
	type pair struct {
		h Handle
		v T
	}
	pairs := make([]pair, 0, len(m.slots))
	for i, s := range m.slots {
		if s.valid {
			pairs = append(pairs, pair{makeHandle(i, s.gen), s.value})
		}
	}
	m.mu.RUnlock()

	for _, p := range pairs {
		if !fn(p.h, p.v) {
			return
		}
	}
}

// Subscribe adds an observer for lifecycle events.
func (m *HandleMap[T]) Subscribe(o Observer) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.observers = append(m.observers, o)
}

// Clear removes every live handle.
func (m *HandleMap[T]) Clear() {
	var handles []Handle
	m.Each(func(h Handle, _ T) bool {
		handles = append(handles, h)
		return true
	})
	for _, h := range handles {
		_, _ = m.Remove(h)
	}
}

// Close removes every live handle and rejects further inserts.
func (m *HandleMap[T]) Close() error {
	m.Clear()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *HandleMap[T]) notify(e Event) {
	m.obsMu.RLock()
	defer m.obsMu.RUnlock()
	for _, o := range m.observers {
		o.OnHandleEvent(e)
	}
}
