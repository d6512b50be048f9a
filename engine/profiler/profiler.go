// Package profiler aggregates per-frame timings and render statistics and reports them through
// the logger at a fixed interval.
package profiler

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-render/common"
	"github.com/Carmen-Shannon/oxy-render/engine/draw_list"
	"github.com/Carmen-Shannon/oxy-render/engine/resource_cache"
)

// Report summarises the frames recorded during one interval.
type Report struct {
	Frames  int
	Elapsed time.Duration
	FPS     float64

	// Prepare and Execute are the mean CPU times spent preparing and executing a frame.
	Prepare time.Duration
	Execute time.Duration

	// Stats holds the counts of the last frame of the interval.
	Stats draw_list.FrameStats
	Cache resource_cache.CacheStats

	HeapMB      float64
	AllocRateMB float64
	NumGC       uint32
	MaxPauseUs  uint64
}

// Profiler tracks frame rate, phase timings and memory statistics.
type Profiler struct {
	logger   *slog.Logger
	now      func() time.Time
	interval time.Duration
	memory   bool

	start      time.Time
	frames     int
	prepare    time.Duration
	execute    time.Duration
	stats      draw_list.FrameStats
	cacheStats resource_cache.CacheStats

	mem            runtime.MemStats
	lastGC         uint32
	lastTotalAlloc uint64
	last           Report
}

// NewProfiler creates a profiler reporting once per second.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Profiler: the profiler, with its interval starting now
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		logger:   common.NopLogger(),
		now:      time.Now,
		interval: time.Second,
		memory:   true,
	}
	for _, opt := range options {
		opt(p)
	}
	p.start = p.now()
	return p
}

// Frame records one finished frame.
//
// Parameters:
//   - prepare: time spent in RenderSystem.PrepareFrame
//   - execute: time spent executing the frame graphs
//   - stats: the frame's draw counts
//   - cache: the resource cache counters after the frame
//
// Returns:
//   - Report: the interval report
//   - bool: true when the interval elapsed and the report was logged
func (p *Profiler) Frame(prepare, execute time.Duration, stats draw_list.FrameStats, cache resource_cache.CacheStats) (Report, bool) {
	p.frames++
	p.prepare += prepare
	p.execute += execute
	p.stats = stats
	p.cacheStats = cache

	now := p.now()
	elapsed := now.Sub(p.start)
	if elapsed < p.interval {
		return Report{}, false
	}

	r := Report{
		Frames:  p.frames,
		Elapsed: elapsed,
		FPS:     float64(p.frames) / elapsed.Seconds(),
		Prepare: p.prepare / time.Duration(p.frames),
		Execute: p.execute / time.Duration(p.frames),
		Stats:   p.stats,
		Cache:   p.cacheStats,
	}
	if p.memory {
		p.readMemory(&r, elapsed)
	}
	p.log(r)

	p.last = r
	p.start = now
	p.frames = 0
	p.prepare, p.execute = 0, 0
	return r, true
}

// Last returns the most recent report.
func (p *Profiler) Last() Report { return p.last }

func (p *Profiler) readMemory(r *Report, elapsed time.Duration) {
	runtime.ReadMemStats(&p.mem)
	r.HeapMB = float64(p.mem.Alloc) / 1024 / 1024
	r.AllocRateMB = float64(p.mem.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	r.NumGC = p.mem.NumGC

	// PauseNs is a ring of the last 256 pauses.
	first := p.lastGC
	if r.NumGC-first > 256 {
		first = r.NumGC - 256
	}
	for i := first; i < r.NumGC; i++ {
		r.MaxPauseUs = max(r.MaxPauseUs, p.mem.PauseNs[i%256]/1000)
	}
	p.lastGC = r.NumGC
	p.lastTotalAlloc = p.mem.TotalAlloc
}

func (p *Profiler) log(r Report) {
	p.logger.Info("[Profiler] frame stats",
		"fps", r.FPS,
		"prepare", r.Prepare,
		"execute", r.Execute,
		"proxies", r.Stats.TotalProxies,
		"visible", r.Stats.VisibleProxies,
		"opaque", r.Stats.OpaqueDraws,
		"transparent", r.Stats.TransparentDraws,
		"outline", r.Stats.OutlineDraws,
		"meshes", r.Cache.Meshes,
		"materials", r.Cache.Materials,
		"textures", r.Cache.Textures,
		"uploads", r.Cache.Uploads,
		"evictions", r.Cache.Evictions,
	)
	if p.memory {
		p.logger.Debug("[Profiler] memory",
			"heapMB", r.HeapMB,
			"allocRateMB", r.AllocRateMB,
			"gc", r.NumGC,
			"maxPauseUs", r.MaxPauseUs,
		)
	}
}
