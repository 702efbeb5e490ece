// Package parallel splits host kernel loops across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution of host kernels.
type Config struct {
	Enabled      bool // Whether loops may fan out to goroutines.
	NumWorkers   int  // Goroutines per loop; defaults to runtime.NumCPU().
	MinChunkSize int  // Minimum work items per goroutine; defaults to 1024.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1024,
	}
}

// Sequential returns a Config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

func (c Config) withDefaults() Config {
	if c.NumWorkers <= 0 {
		c.NumWorkers = runtime.NumCPU()
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = 1024
	}
	return c
}

// Range calls f(start, end) over disjoint chunks covering [0, n).
// Chunks run concurrently when enabled and n is large enough, so f must only
// write to locations owned by its own indices.
func Range(n int, f func(start, end int), cfg Config) {
	if n <= 0 {
		return
	}
	cfg = cfg.withDefaults()
	if !cfg.Enabled || n < 2*cfg.MinChunkSize {
		f(0, n)
		return
	}

	chunk := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			f(s, e)
		}(start, end)
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n), chunked as in Range.
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}
