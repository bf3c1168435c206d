package syncer

import "runtime"

// ResourceProbe measures the resource budget the batch circuit breaker
// guards. Injected so tests can fake exhaustion.
type ResourceProbe interface {
	HeapBytes() uint64
}

// RuntimeProbe reads the live heap allocation.
type RuntimeProbe struct{}

func (RuntimeProbe) HeapBytes() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}
