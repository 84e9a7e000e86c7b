package boundary

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	ffibindgen "github.com/wippyai/ffi-bindgen"
	"github.com/wippyai/ffi-bindgen/errors"
)

// PageSize is the size of one linear memory page.
const PageSize = 65536

// memoryModule is a module that only defines and exports one growable
// memory "mem" of one initial page.
var memoryModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, no max, min 1
	0x07, 0x07, 0x01, 0x03, 'm', 'e', 'm', 0x02, 0x00, // export "mem"
}

// LinearMemory owns a wazero runtime holding a single linear memory.
type LinearMemory struct {
	rt  wazero.Runtime
	mod api.Module
	mem api.Memory
}

// NewLinearMemory instantiates a fresh linear memory of one page.
func NewLinearMemory(ctx context.Context) (*LinearMemory, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	mod, err := rt.Instantiate(ctx, memoryModule)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Wrap(errors.PhaseRuntime, errors.KindAllocation, err, "instantiate linear memory")
	}
	mem := mod.ExportedMemory("mem")
	if mem == nil {
		_ = rt.Close(ctx)
		return nil, errors.NotFound(errors.PhaseRuntime, "memory export", "mem")
	}
	return &LinearMemory{rt: rt, mod: mod, mem: mem}, nil
}

// API returns the raw wazero memory.
func (m *LinearMemory) API() api.Memory { return m.mem }

// Memory returns the memory behind the boundary contract.
func (m *LinearMemory) Memory() ffibindgen.Memory { return WrapMemory(m.mem) }

// Close releases the runtime.
func (m *LinearMemory) Close(ctx context.Context) error {
	return m.rt.Close(ctx)
}

// WrapMemory adapts a wazero memory to ffibindgen.Memory.
func WrapMemory(mem api.Memory) ffibindgen.Memory {
	if mem == nil {
		return nil
	}
	return &memoryWrapper{mem: mem}
}

type memoryWrapper struct {
	mem api.Memory
}

var (
	_ ffibindgen.Memory      = (*memoryWrapper)(nil)
	_ ffibindgen.MemorySizer = (*memoryWrapper)(nil)
)

func (m *memoryWrapper) Size() uint32 { return m.mem.Size() }

func (m *memoryWrapper) Read(offset uint32, length uint32) ([]byte, error) {
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseRuntime, offset, length)
	}
	return data, nil
}

func (m *memoryWrapper) Write(offset uint32, data []byte) error {
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseRuntime, offset, uint32(len(data)))
	}
	return nil
}

func (m *memoryWrapper) ReadU8(offset uint32) (uint8, error) {
	v, ok := m.mem.ReadByte(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, offset, 1)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU16(offset uint32) (uint16, error) {
	v, ok := m.mem.ReadUint16Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, offset, 2)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU32(offset uint32) (uint32, error) {
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, offset, 4)
	}
	return v, nil
}

func (m *memoryWrapper) ReadU64(offset uint32) (uint64, error) {
	v, ok := m.mem.ReadUint64Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseRuntime, offset, 8)
	}
	return v, nil
}

func (m *memoryWrapper) WriteU8(offset uint32, value uint8) error {
	if !m.mem.WriteByte(offset, value) {
		return errors.OutOfBounds(errors.PhaseRuntime, offset, 1)
	}
	return nil
}

func (m *memoryWrapper) WriteU16(offset uint32, value uint16) error {
	if !m.mem.WriteUint16Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseRuntime, offset, 2)
	}
	return nil
}

func (m *memoryWrapper) WriteU32(offset uint32, value uint32) error {
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseRuntime, offset, 4)
	}
	return nil
}

func (m *memoryWrapper) WriteU64(offset uint32, value uint64) error {
	if !m.mem.WriteUint64Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseRuntime, offset, 8)
	}
	return nil
}
