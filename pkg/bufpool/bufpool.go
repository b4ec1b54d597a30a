// Package bufpool recycles the byte slices that back connection buffers.
//
// Slices are grouped in power-of-two size classes between MinSize and
// MaxSize, matching the doubling growth of buffer.Buffer. A connection that
// grows its read buffer from 4KiB to 64KiB while receiving an upload hands the
// smaller slice back here instead of leaving it for the collector.
//
// Requests above MaxSize are allocated directly and never pooled so that a
// single large upload cannot pin memory after it finishes.
//
// Usage:
//
//	buf := bufpool.Get(n)
//	defer bufpool.Put(buf)
package bufpool

import (
	"math/bits"
	"sync"
)

const (
	// MinSize is the smallest pooled class (4KiB).
	MinSize = 4 << 10

	// MaxSize is the largest pooled class (1MiB).
	MaxSize = 1 << 20

	minShift = 12
	classes  = 20 - minShift + 1
)

// Pool holds one sync.Pool per size class.
type Pool struct {
	tiers [classes]sync.Pool
}

// NewPool creates an empty pool.
func NewPool() *Pool {
	p := &Pool{}
	for i := range p.tiers {
		size := 1 << (minShift + i)
		p.tiers[i].New = func() any {
			b := make([]byte, size)
			return &b
		}
	}
	return p
}

// classFor returns the tier index serving size, or -1 when size is too large.
func classFor(size int) int {
	if size <= MinSize {
		return 0
	}
	if size > MaxSize {
		return -1
	}
	return bits.Len(uint(size-1)) - minShift
}

// Get returns a slice of length size. Its capacity is the size class, so
// callers that want the full backing array may reslice to cap.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	idx := classFor(size)
	if idx < 0 {
		return make([]byte, size)
	}
	b := p.tiers[idx].Get().(*[]byte)
	return (*b)[:size]
}

// Put returns buf to its class. Slices whose capacity is not exactly a
// class size (including oversized direct allocations) are dropped.
func (p *Pool) Put(buf []byte) {
	c := cap(buf)
	if c < MinSize || c > MaxSize || c&(c-1) != 0 {
		return
	}
	full := buf[:c]
	p.tiers[classFor(c)].Put(&full)
}

var global = NewPool()

// Get returns a slice of length size from the process-wide pool.
func Get(size int) []byte { return global.Get(size) }

// Put returns buf to the process-wide pool.
func Put(buf []byte) { global.Put(buf) }
