package utils

import (
	"bufio"
	"bytes"
	"io"
	"sync"
)

const lineTerminatorByteConstant = '\n'

// FlushingWriter buffers console output and flushes it whenever a complete line has been written,
// so progress lines from concurrent workers surface without interleaving partial writes.
type FlushingWriter struct {
	mutex  sync.Mutex
	buffer *bufio.Writer
}

// NewFlushingWriter wraps the provided writer. A nil writer yields a writer that discards output.
func NewFlushingWriter(writer io.Writer) *FlushingWriter {
	if writer == nil {
		writer = io.Discard
	}
	if existing, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return existing
	}
	return &FlushingWriter{buffer: bufio.NewWriter(writer)}
}

// Write buffers data and flushes when it contains a line terminator.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	bytesWritten, writeError := flushingWriter.buffer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if bytes.IndexByte(data, lineTerminatorByteConstant) >= 0 {
		return bytesWritten, flushingWriter.buffer.Flush()
	}
	return bytesWritten, nil
}

// Flush writes any buffered partial line.
func (flushingWriter *FlushingWriter) Flush() error {
	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()
	return flushingWriter.buffer.Flush()
}
