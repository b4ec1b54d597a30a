package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Size classes
// ============================================================================

func TestGetSizeClasses(t *testing.T) {
	p := NewPool()

	tests := []struct {
		name    string
		size    int
		wantCap int
	}{
		{"Zero", 0, MinSize},
		{"Tiny", 1, MinSize},
		{"ExactMin", MinSize, MinSize},
		{"JustOverMin", MinSize + 1, 2 * MinSize},
		{"Mid", 40 << 10, 64 << 10},
		{"ExactMax", MaxSize, MaxSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := p.Get(tt.size)
			assert.Len(t, b, tt.size)
			assert.Equal(t, tt.wantCap, cap(b))
			p.Put(b)
		})
	}
}

func TestGetOversizedIsNotPooled(t *testing.T) {
	p := NewPool()

	b := p.Get(MaxSize + 1)
	assert.Len(t, b, MaxSize+1)
	assert.Equal(t, MaxSize+1, cap(b))

	// Dropped silently.
	p.Put(b)
}

func TestPutIgnoresForeignSlices(t *testing.T) {
	p := NewPool()
	p.Put(nil)
	p.Put(make([]byte, 100))
	p.Put(make([]byte, 3*MinSize))

	b := p.Get(MinSize)
	assert.Equal(t, MinSize, cap(b))
}

func TestPutRestoresFullLength(t *testing.T) {
	p := NewPool()

	b := p.Get(10)
	b[0] = 0xAB
	p.Put(b)

	again := p.Get(MinSize)
	require.Len(t, again, MinSize)
}

// ============================================================================
// Global pool
// ============================================================================

func TestGlobalPool(t *testing.T) {
	b := Get(8 << 10)
	assert.Len(t, b, 8<<10)
	assert.Equal(t, 8<<10, cap(b))
	Put(b)
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				size := (g*977 + i*131) % (MaxSize / 4)
				b := Get(size)
				if len(b) != size {
					t.Errorf("len %d, want %d", len(b), size)
				}
				Put(b)
			}
		}(g)
	}
	wg.Wait()
}

func BenchmarkGetPut(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Put(Get(64 << 10))
	}
}
