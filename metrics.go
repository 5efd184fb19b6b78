package dimgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    loadCounter   prometheus.Counter
//	    loadHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordLoad(duration time.Duration, err error) {
//	    p.loadCounter.Inc()
//	    // ... record error state, duration, etc.
//	}
type MetricsCollector interface {
	// RecordLoad is called after each chunk fetch from storage.
	// duration is the time taken, err is nil if successful.
	RecordLoad(duration time.Duration, err error)

	// RecordCacheHit is called when a load is served from the cache.
	RecordCacheHit()

	// RecordCacheMiss is called when a load goes to storage.
	RecordCacheMiss()

	// RecordGet is called after each point lookup.
	RecordGet(duration time.Duration, err error)

	// RecordInsert is called after each insert operation.
	RecordInsert(duration time.Duration, err error)

	// RecordUpdate is called after each update operation.
	RecordUpdate(duration time.Duration, err error)

	// RecordRemove is called after each remove operation.
	RecordRemove(duration time.Duration, err error)

	// RecordScan is called after each range scan with the number of
	// records that matched the filter.
	RecordScan(matches int, duration time.Duration, err error)

	// RecordResolve is called after each deferred record resolution.
	RecordResolve(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordLoad(time.Duration, error)      {}
func (NoopMetricsCollector) RecordCacheHit()                      {}
func (NoopMetricsCollector) RecordCacheMiss()                     {}
func (NoopMetricsCollector) RecordGet(time.Duration, error)       {}
func (NoopMetricsCollector) RecordInsert(time.Duration, error)    {}
func (NoopMetricsCollector) RecordUpdate(time.Duration, error)    {}
func (NoopMetricsCollector) RecordRemove(time.Duration, error)    {}
func (NoopMetricsCollector) RecordScan(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordResolve(time.Duration, error)   {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	LoadCount       atomic.Int64
	LoadErrors      atomic.Int64
	LoadTotalNanos  atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
	GetCount        atomic.Int64
	GetErrors       atomic.Int64
	InsertCount     atomic.Int64
	InsertErrors    atomic.Int64
	UpdateCount     atomic.Int64
	UpdateErrors    atomic.Int64
	RemoveCount     atomic.Int64
	RemoveErrors    atomic.Int64
	ScanCount       atomic.Int64
	ScanErrors      atomic.Int64
	ScanMatches     atomic.Int64
	ScanTotalNanos  atomic.Int64
	ResolveCount    atomic.Int64
	ResolveErrors   atomic.Int64
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(duration time.Duration, err error) {
	b.LoadCount.Add(1)
	b.LoadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// RecordCacheHit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheHit() {
	b.CacheHits.Add(1)
}

// RecordCacheMiss implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCacheMiss() {
	b.CacheMisses.Add(1)
}

// RecordGet implements MetricsCollector.
func (b *BasicMetricsCollector) RecordGet(duration time.Duration, err error) {
	b.GetCount.Add(1)
	if err != nil {
		b.GetErrors.Add(1)
	}
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordUpdate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpdate(duration time.Duration, err error) {
	b.UpdateCount.Add(1)
	if err != nil {
		b.UpdateErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(duration time.Duration, err error) {
	b.RemoveCount.Add(1)
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordScan implements MetricsCollector.
func (b *BasicMetricsCollector) RecordScan(matches int, duration time.Duration, err error) {
	b.ScanCount.Add(1)
	b.ScanMatches.Add(int64(matches))
	b.ScanTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ScanErrors.Add(1)
	}
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(duration time.Duration, err error) {
	b.ResolveCount.Add(1)
	if err != nil {
		b.ResolveErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		LoadCount:     b.LoadCount.Load(),
		LoadErrors:    b.LoadErrors.Load(),
		LoadAvgNanos:  b.getAvgLoadNanos(),
		CacheHits:     b.CacheHits.Load(),
		CacheMisses:   b.CacheMisses.Load(),
		GetCount:      b.GetCount.Load(),
		GetErrors:     b.GetErrors.Load(),
		InsertCount:   b.InsertCount.Load(),
		InsertErrors:  b.InsertErrors.Load(),
		UpdateCount:   b.UpdateCount.Load(),
		UpdateErrors:  b.UpdateErrors.Load(),
		RemoveCount:   b.RemoveCount.Load(),
		RemoveErrors:  b.RemoveErrors.Load(),
		ScanCount:     b.ScanCount.Load(),
		ScanErrors:    b.ScanErrors.Load(),
		ScanMatches:   b.ScanMatches.Load(),
		ScanAvgNanos:  b.getAvgScanNanos(),
		ResolveCount:  b.ResolveCount.Load(),
		ResolveErrors: b.ResolveErrors.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgLoadNanos() int64 {
	count := b.LoadCount.Load()
	if count == 0 {
		return 0
	}
	return b.LoadTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgScanNanos() int64 {
	count := b.ScanCount.Load()
	if count == 0 {
		return 0
	}
	return b.ScanTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	LoadCount     int64
	LoadErrors    int64
	LoadAvgNanos  int64
	CacheHits     int64
	CacheMisses   int64
	GetCount      int64
	GetErrors     int64
	InsertCount   int64
	InsertErrors  int64
	UpdateCount   int64
	UpdateErrors  int64
	RemoveCount   int64
	RemoveErrors  int64
	ScanCount     int64
	ScanErrors    int64
	ScanMatches   int64
	ScanAvgNanos  int64
	ResolveCount  int64
	ResolveErrors int64
}
