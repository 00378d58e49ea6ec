package http

import (
	"bufio"
	"io"
	"runtime"
	"sync/atomic"
)

// bufferPoolSize must be a power of two.
const bufferPoolSize = 256

// connBuffers are the reader and writer wrapped around one connection or
// stream while it is served.
type connBuffers struct {
	reader *bufio.Reader
	writer *bufio.Writer
}

// bufferPool recycles connBuffers between connections. Gets on an empty pool
// allocate, puts on a full pool drop the buffers.
type bufferPool struct {
	ready ringBuffer[*connBuffers]
}

func newBufferPool() *bufferPool {
	p := &bufferPool{}
	p.ready.init()
	return p
}

func (p *bufferPool) get(rw io.ReadWriter) *connBuffers {
	buffers, ok := p.ready.dequeue()
	if !ok {
		return &connBuffers{
			reader: bufio.NewReaderSize(rw, DefaultReadBufferSize),
			writer: bufio.NewWriterSize(rw, DefaultWriteBufferSize),
		}
	}

	buffers.reader.Reset(rw)
	buffers.writer.Reset(rw)
	return buffers
}

func (p *bufferPool) put(buffers *connBuffers) {
	buffers.reader.Reset(nil)
	buffers.writer.Reset(nil)
	p.ready.enqueue(buffers)
}

// ringBuffer is a bounded lock-free MPMC queue.
type ringBuffer[T any] struct {
	buffer [bufferPoolSize]slot[T]
	enqPos atomic.Uint64
	deqPos atomic.Uint64
}

type slot[T any] struct {
	sequence atomic.Uint64
	value    T
}

const ringMask = bufferPoolSize - 1

func (q *ringBuffer[T]) init() {
	for i := range q.buffer {
		q.buffer[i].sequence.Store(uint64(i))
	}
}

// enqueue reports false when the buffer is full.
func (q *ringBuffer[T]) enqueue(val T) bool {
	for {
		pos := q.enqPos.Load()
		slot := &q.buffer[pos&ringMask]

		delta := int64(slot.sequence.Load()) - int64(pos)
		switch {
		case delta == 0:
			if q.enqPos.CompareAndSwap(pos, pos+1) {
				slot.value = val
				slot.sequence.Store(pos + 1)
				return true
			}
		case delta < 0:
			return false
		default:
			runtime.Gosched()
		}
	}
}

// dequeue reports false when the buffer is empty.
func (q *ringBuffer[T]) dequeue() (T, bool) {
	var zero T
	for {
		pos := q.deqPos.Load()
		slot := &q.buffer[pos&ringMask]

		delta := int64(slot.sequence.Load()) - int64(pos+1)
		switch {
		case delta == 0:
			if q.deqPos.CompareAndSwap(pos, pos+1) {
				val := slot.value
				slot.value = zero
				slot.sequence.Store(pos + ringMask + 1)
				return val, true
			}
		case delta < 0:
			return zero, false
		default:
			runtime.Gosched()
		}
	}
}
