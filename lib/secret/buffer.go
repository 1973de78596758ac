// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a fixed-size region of locked, non-dumpable memory mapped
// outside the Go heap. Close zeros and unmaps it; any read after that
// panics. Do not copy a Buffer.
type Buffer struct {
	mu   sync.Mutex
	data []byte // nil once closed
}

// New maps a zero-filled Buffer of size bytes. The caller must Close it.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}
	data, err := mapLocked(size)
	if err != nil {
		return nil, err
	}
	return &Buffer{data: data}, nil
}

// NewFromBytes moves source into a new Buffer. source is zeroed
// whether or not the allocation succeeds.
func NewFromBytes(source []byte) (*Buffer, error) {
	defer Zero(source)
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}
	buffer, err := New(len(source))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, source)
	return buffer, nil
}

// Bytes returns the protected region itself. The slice is invalid
// after Close.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live()
}

// String copies the contents onto the heap. Keep it to API boundaries
// that only accept strings.
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.live())
}

// Len is the buffer size, or zero once closed.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Close wipes and releases the region. Later calls return nil.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil
	}
	data := b.data
	b.data = nil
	return unmapLocked(data)
}

func (b *Buffer) live() []byte {
	if b.data == nil {
		panic("secret: read from closed buffer")
	}
	return b.data
}

// Zero overwrites data with zeros.
func Zero(data []byte) {
	clear(data)
}

// mapLocked returns an anonymous private mapping that is pinned in RAM
// and left out of core dumps.
func mapLocked(size int) ([]byte, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap %d bytes: %w", size, err)
	}
	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		_ = unix.Munlock(data)
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("secret: madvise(MADV_DONTDUMP): %w", err)
	}
	return data, nil
}

// unmapLocked zeros data before giving it back to the kernel. Both
// release steps run even if the first fails.
func unmapLocked(data []byte) error {
	Zero(data)
	var errs []error
	if err := unix.Munlock(data); err != nil {
		errs = append(errs, fmt.Errorf("secret: munlock: %w", err))
	}
	if err := unix.Munmap(data); err != nil {
		errs = append(errs, fmt.Errorf("secret: munmap: %w", err))
	}
	return errors.Join(errs...)
}
