package boundary

import (
	"sort"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	ffibindgen "github.com/wippyai/ffi-bindgen"
	"github.com/wippyai/ffi-bindgen/errors"
)

// heapBase keeps offset 0 unallocated so a zero pointer is never valid.
const heapBase = 8

type span struct {
	off, size uint32
}

func (s span) end() uint32 { return s.off + s.size }

// LinearAllocator is a first-fit allocator over a growable wazero memory.
// Freed blocks are coalesced, and a block at the top of the heap lowers
// the bump pointer.
type LinearAllocator struct {
	mem  api.Memory
	free []span // sorted by offset, never adjacent
	live map[uint32]uint32
	top  uint32
	mu   sync.Mutex
}

var _ ffibindgen.Allocator = (*LinearAllocator)(nil)

// NewLinearAllocator allocates out of mem, growing it as needed.
func NewLinearAllocator(mem api.Memory) *LinearAllocator {
	return &LinearAllocator{
		mem:  mem,
		live: make(map[uint32]uint32),
		top:  heapBase,
	}
}

func alignUp(v, align uint32) uint64 {
	a := uint64(align)
	return (uint64(v) + a - 1) &^ (a - 1)
}

// Alloc returns a block of at least size bytes aligned to align, which
// must be a power of two. A zero size allocates one byte.
func (a *LinearAllocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(align).
			Detail("alignment %d is not a power of two", align).
			Build()
	}
	if size == 0 {
		size = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if ptr, ok := a.fromFreeList(size, align); ok {
		a.live[ptr] = size
		return ptr, nil
	}

	start := alignUp(a.top, align)
	end := start + uint64(size)
	if end > uint64(^uint32(0)) {
		return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
	}
	if cur := uint64(a.mem.Size()); end > cur {
		pages := (end - cur + PageSize - 1) / PageSize
		if _, ok := a.mem.Grow(uint32(pages)); !ok {
			return 0, errors.AllocationFailed(errors.PhaseRuntime, size, align)
		}
	}
	if uint32(start) > a.top {
		a.insertFree(span{off: a.top, size: uint32(start) - a.top})
	}
	a.top = uint32(end)
	a.live[uint32(start)] = size
	return uint32(start), nil
}

func (a *LinearAllocator) fromFreeList(size, align uint32) (uint32, bool) {
	for i, s := range a.free {
		start := alignUp(s.off, align)
		if start+uint64(size) > uint64(s.end()) {
			continue
		}
		ptr := uint32(start)
		var rest []span
		if ptr > s.off {
			rest = append(rest, span{off: s.off, size: ptr - s.off})
		}
		if tail := ptr + size; tail < s.end() {
			rest = append(rest, span{off: tail, size: s.end() - tail})
		}
		a.free = append(a.free[:i], append(rest, a.free[i+1:]...)...)
		return ptr, true
	}
	return 0, false
}

// Free releases a block returned by Alloc. Unknown pointers are logged
// and ignored.
func (a *LinearAllocator) Free(ptr, size, align uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	got, ok := a.live[ptr]
	if !ok {
		Logger().Warn("free of unknown pointer",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Uint32("align", align))
		return
	}
	delete(a.live, ptr)
	a.insertFree(span{off: ptr, size: got})

	if n := len(a.free); n > 0 && a.free[n-1].end() == a.top {
		a.top = a.free[n-1].off
		a.free = a.free[:n-1]
	}
}

func (a *LinearAllocator) insertFree(s span) {
	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off >= s.off })
	a.free = append(a.free, span{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = s

	if i+1 < len(a.free) && a.free[i].end() == a.free[i+1].off {
		a.free[i].size += a.free[i+1].size
		a.free = append(a.free[:i+1], a.free[i+2:]...)
	}
	if i > 0 && a.free[i-1].end() == a.free[i].off {
		a.free[i-1].size += a.free[i].size
		a.free = append(a.free[:i], a.free[i+1:]...)
	}
}

// Live returns the number of outstanding blocks.
func (a *LinearAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// InUse returns the number of bytes held by outstanding blocks.
func (a *LinearAllocator) InUse() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var n uint64
	for _, size := range a.live {
		n += uint64(size)
	}
	return n
}
