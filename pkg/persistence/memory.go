package persistence

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// DefaultSize is the capacity of a store in bytes.
const DefaultSize = 1024

// ErasedByte is the value of a cell that has never been written.
const ErasedByte byte = 0xFF

// Store errors.
var (
	ErrOutOfRange = errors.New("persistence: address out of range")
	ErrClosed     = errors.New("persistence: store closed")
)

// Memory is a byte-addressed non-volatile store.
type Memory interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the capacity in bytes.
	Size() int64
}

func checkRange(off int64, n int, size int64) error {
	if off < 0 || off+int64(n) > size {
		return fmt.Errorf("%w: [%#04x, %#04x) of %d", ErrOutOfRange, off, off+int64(n), size)
	}
	return nil
}

// MemMemory is a volatile Memory.
type MemMemory struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemMemory returns an erased store of size bytes (DefaultSize if size
// is not positive).
func NewMemMemory(size int) *MemMemory {
	if size <= 0 {
		size = DefaultSize
	}
	m := &MemMemory{data: make([]byte, size)}
	for i := range m.data {
		m.data[i] = ErasedByte
	}
	return m
}

// Size returns the capacity.
func (m *MemMemory) Size() int64 {
	return int64(len(m.data))
}

// ReadAt implements io.ReaderAt.
func (m *MemMemory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return 0, err
	}
	return copy(p, m.data[off:]), nil
}

// WriteAt implements io.WriterAt.
func (m *MemMemory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(off, len(p), int64(len(m.data))); err != nil {
		return 0, err
	}
	return copy(m.data[off:], p), nil
}

var _ Memory = (*MemMemory)(nil)
