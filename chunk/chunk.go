// Package chunk provides the append-only byte buffer used to build and hold
// program images.
package chunk

import (
	"io"
)

// Chunk is an append-only byte buffer whose capacity doubles on overflow.
type Chunk struct {
	data []byte
	size int
}

// New creates an empty chunk with room for a single byte.
func New() (chunk *Chunk) {
	chunk = &Chunk{
		data: make([]byte, 1),
	}
	return
}

// FromBytes creates a chunk holding a copy of data.
func FromBytes(data []byte) (chunk *Chunk) {
	chunk = New()
	chunk.Write(data)
	return
}

// grow doubles the capacity until need more bytes fit.
func (chunk *Chunk) grow(need int) {
	capacity := len(chunk.data)
	if capacity == 0 {
		capacity = 1
	}
	for chunk.size+need > capacity {
		capacity *= 2
	}
	if capacity != len(chunk.data) {
		data := make([]byte, capacity)
		copy(data, chunk.data[:chunk.size])
		chunk.data = data
	}
}

// WriteByte appends a single byte. It never fails.
func (chunk *Chunk) WriteByte(value byte) error {
	chunk.grow(1)
	chunk.data[chunk.size] = value
	chunk.size++
	return nil
}

// Write appends all of data. It never fails.
func (chunk *Chunk) Write(data []byte) (n int, err error) {
	chunk.grow(len(data))
	n = copy(chunk.data[chunk.size:], data)
	chunk.size += n
	return
}

// WriteShort appends a 16-bit value, low byte first.
func (chunk *Chunk) WriteShort(value uint16) {
	chunk.WriteByte(byte(value & 0xff))
	chunk.WriteByte(byte(value >> 8))
}

// Len is the number of bytes written.
func (chunk *Chunk) Len() int {
	return chunk.size
}

// Cap is the current capacity.
func (chunk *Chunk) Cap() int {
	return len(chunk.data)
}

// Bytes returns the written bytes. The slice aliases the chunk storage
// until the next append.
func (chunk *Chunk) Bytes() []byte {
	return chunk.data[:chunk.size:chunk.size]
}

// WriteTo dumps the written bytes verbatim, which is the saved program format.
func (chunk *Chunk) WriteTo(w io.Writer) (n int64, err error) {
	written, err := w.Write(chunk.Bytes())
	n = int64(written)
	return
}
