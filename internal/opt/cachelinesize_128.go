//go:build barrier_cachelinesize_128

package opt

// CacheLineSize_ is forced to 128 bytes, for targets whose prefetcher
// pulls adjacent line pairs (Apple M-series, recent Intel).
// Use: go build -tags=barrier_cachelinesize_128
const CacheLineSize_ uintptr = 128
