package storage

import (
	"bytes"
	"io"
	"slices"
	"sync"
)

// Buffer stages a file in memory before it is handed to a Storage.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

var _ io.Writer = (*Buffer)(nil)

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	return len(p), nil
}

func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.data))
}

func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = b.data[:0]
}

// Reader returns a reader over a snapshot of the staged bytes.
func (b *Buffer) Reader() *bytes.Reader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.NewReader(slices.Clone(b.data))
}
