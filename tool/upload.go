package tool

import (
	"errors"
	"fmt"
	"io"
)

// ChunkCount returns how many chunks of chunkSize bytes cover size bytes.
func ChunkCount(size, chunkSize int64) int {
	if size <= 0 || chunkSize <= 0 {
		return 0
	}
	return int((size + chunkSize - 1) / chunkSize)
}

// ReadChunk reads chunk index of a file split into chunkSize pieces.
// The last chunk may be shorter.
func ReadChunk(r io.ReaderAt, size, chunkSize int64, index int) ([]byte, error) {
	if index < 0 || index >= ChunkCount(size, chunkSize) {
		return nil, fmt.Errorf("chunk index %d out of range", index)
	}
	offset := int64(index) * chunkSize
	length := min(chunkSize, size-offset)
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if err != nil && !(errors.Is(err, io.EOF) && int64(n) == length) {
		return nil, fmt.Errorf("failed to read chunk %d: %v", index, err)
	}
	return buf, nil
}
