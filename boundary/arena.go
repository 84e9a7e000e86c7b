package boundary

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	ffibindgen "github.com/wippyai/ffi-bindgen"
	"github.com/wippyai/ffi-bindgen/errors"
)

// BufferSize is the size of a Buffer stored in linear memory:
// capacity u64, len u64, data pointer u32, padded to 8.
const BufferSize = 24

const bufferAlign = 8

// Buffer is a byte buffer owned by native code.
type Buffer struct {
	Capacity uint32
	Len      uint32
	Data     uint32
}

// Arena lowers host blobs into linear memory and lifts them back. Each
// lowered buffer is owned by native code until lifted or freed, and
// either happens exactly once.
type Arena struct {
	mem   ffibindgen.Memory
	alloc ffibindgen.Allocator
	live  map[uint32]Buffer
	mu    sync.Mutex
}

// NewArena creates an arena over mem and alloc.
func NewArena(mem ffibindgen.Memory, alloc ffibindgen.Allocator) *Arena {
	return &Arena{
		mem:   mem,
		alloc: alloc,
		live:  make(map[uint32]Buffer),
	}
}

// Lower copies blob into a new buffer and transfers it to native code.
func (a *Arena) Lower(blob []byte) (Buffer, error) {
	capacity := uint32(len(blob))
	if capacity == 0 {
		capacity = 1
	}
	ptr, err := a.alloc.Alloc(capacity, 1)
	if err != nil {
		return Buffer{}, err
	}
	if len(blob) > 0 {
		if err := a.mem.Write(ptr, blob); err != nil {
			a.alloc.Free(ptr, capacity, 1)
			return Buffer{}, err
		}
	}

	buf := Buffer{Capacity: capacity, Len: uint32(len(blob)), Data: ptr}
	a.mu.Lock()
	a.live[ptr] = buf
	a.mu.Unlock()
	return buf, nil
}

// Lift copies the contents of buf out of linear memory and frees it.
func (a *Arena) Lift(buf Buffer) ([]byte, error) {
	if err := a.release(buf); err != nil {
		return nil, err
	}
	defer a.alloc.Free(buf.Data, buf.Capacity, 1)

	data, err := a.mem.Read(buf.Data, buf.Len)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Free releases buf without reading it.
func (a *Arena) Free(buf Buffer) error {
	if err := a.release(buf); err != nil {
		return err
	}
	a.alloc.Free(buf.Data, buf.Capacity, 1)
	return nil
}

func (a *Arena) release(buf Buffer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	got, ok := a.live[buf.Data]
	if !ok {
		Logger().Warn("rejected double free",
			zap.Uint32("data", buf.Data),
			zap.Uint32("len", buf.Len))
		return errors.DoubleFree("buffer", uint64(buf.Data))
	}
	if got != buf {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidData).
			Value(buf.Data).
			Detail("buffer at %d has capacity %d and length %d, not %d and %d",
				buf.Data, got.Capacity, got.Len, buf.Capacity, buf.Len).
			Build()
	}
	delete(a.live, buf.Data)
	return nil
}

// Live returns the buffers native code still owns, ordered by address.
func (a *Arena) Live() []Buffer {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Buffer, 0, len(a.live))
	for _, b := range a.live {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Data < out[j].Data })
	return out
}

// Store writes buf as an out-parameter at offset.
func (a *Arena) Store(offset uint32, buf Buffer) error {
	if offset%bufferAlign != 0 {
		return errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Value(offset).
			Detail("buffer slot at %d is not %d-byte aligned", offset, bufferAlign).
			Build()
	}
	if err := a.mem.WriteU64(offset, uint64(buf.Capacity)); err != nil {
		return err
	}
	if err := a.mem.WriteU64(offset+8, uint64(buf.Len)); err != nil {
		return err
	}
	return a.mem.WriteU32(offset+16, buf.Data)
}

// Load reads a buffer out-parameter written at offset.
func (a *Arena) Load(offset uint32) (Buffer, error) {
	capacity, err := a.mem.ReadU64(offset)
	if err != nil {
		return Buffer{}, err
	}
	length, err := a.mem.ReadU64(offset + 8)
	if err != nil {
		return Buffer{}, err
	}
	data, err := a.mem.ReadU32(offset + 16)
	if err != nil {
		return Buffer{}, err
	}
	if length > capacity || capacity > uint64(^uint32(0)) {
		return Buffer{}, errors.InvalidData(errors.PhaseRuntime, nil, "buffer length exceeds capacity")
	}
	return Buffer{Capacity: uint32(capacity), Len: uint32(length), Data: data}, nil
}
