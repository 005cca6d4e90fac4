package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileMemory is a Memory backed by a flat image file. Every write is synced
// before WriteAt returns.
type FileMemory struct {
	mu   sync.Mutex
	f    *os.File
	size int64
}

// OpenFileMemory opens the image at path, creating an erased image of size
// bytes if it does not exist. An existing image keeps its own size.
func OpenFileMemory(path string, size int) (*FileMemory, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("persistence: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("persistence: open image: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("persistence: stat image: %w", err)
	}

	if info.Size() == 0 {
		erased := make([]byte, size)
		for i := range erased {
			erased[i] = ErasedByte
		}
		if _, err := f.WriteAt(erased, 0); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("persistence: erase image: %w", err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("persistence: sync image: %w", err)
		}
		return &FileMemory{f: f, size: int64(size)}, nil
	}
	return &FileMemory{f: f, size: info.Size()}, nil
}

// Size returns the image size.
func (m *FileMemory) Size() int64 {
	return m.size
}

// ReadAt implements io.ReaderAt.
func (m *FileMemory) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return 0, ErrClosed
	}
	if err := checkRange(off, len(p), m.size); err != nil {
		return 0, err
	}
	return m.f.ReadAt(p, off)
}

// WriteAt implements io.WriterAt.
func (m *FileMemory) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return 0, ErrClosed
	}
	if err := checkRange(off, len(p), m.size); err != nil {
		return 0, err
	}
	n, err := m.f.WriteAt(p, off)
	if err != nil {
		return n, err
	}
	return n, m.f.Sync()
}

// Close closes the image file.
func (m *FileMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.f == nil {
		return nil
	}
	err := m.f.Close()
	m.f = nil
	return err
}

var _ Memory = (*FileMemory)(nil)
