// Package profiler reports frame timing and memory statistics through the engine logger.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-rt/engine/logging"
)

// Stats is one reporting interval's summary.
type Stats struct {
	Frames  int
	Skipped int
	FPS     float64

	AvgFrame   time.Duration
	WorstFrame time.Duration

	HeapMB      float64
	AllocRateMB float64
	SysMB       float64
	GCCount     uint32
	LastPause   time.Duration
	MaxPause    time.Duration
}

// Profiler accumulates per-frame timings and logs a Stats line once per interval.
// Not safe for concurrent use.
type Profiler struct {
	interval time.Duration
	now      func() time.Time
	readMem  func(*runtime.MemStats)

	intervalStart time.Time
	lastFrame     time.Time
	frames        int
	skipped       int
	worst         time.Duration

	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// ProfilerOption configures a Profiler.
type ProfilerOption func(*Profiler)

// WithInterval sets how often stats are logged. Values below one millisecond keep the default of one second.
func WithInterval(d time.Duration) ProfilerOption {
	return func(p *Profiler) {
		if d >= time.Millisecond {
			p.interval = d
		}
	}
}

// NewProfiler creates a Profiler whose first interval starts now.
//
// Parameters:
//   - options: functional options, see WithInterval
//
// Returns:
//   - *Profiler: the profiler
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		interval: time.Second,
		now:      time.Now,
		readMem:  runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	p.intervalStart = p.now()
	p.lastFrame = p.intervalStart
	return p
}

// Tick records the end of one frame. When the interval has elapsed the stats are logged and reset.
//
// Parameters:
//   - skipped: true if the compositor skipped presenting this frame
//
// Returns:
//   - Stats: the interval summary, valid only when the bool is true
//   - bool: true if stats were logged this tick
func (p *Profiler) Tick(skipped bool) (Stats, bool) {
	now := p.now()
	frame := now.Sub(p.lastFrame)
	p.lastFrame = now
	p.frames++
	if skipped {
		p.skipped++
	}
	p.worst = max(p.worst, frame)

	elapsed := now.Sub(p.intervalStart)
	if elapsed < p.interval {
		return Stats{}, false
	}

	s := p.collect(elapsed)
	logging.LogInfo("Profiler: %.1f fps | frame avg %s worst %s | skipped %d | heap %.2f MB | alloc %.2f MB/s | gc %d (last %s, max %s) | sys %.2f MB",
		s.FPS, s.AvgFrame, s.WorstFrame, s.Skipped, s.HeapMB, s.AllocRateMB, s.GCCount, s.LastPause, s.MaxPause, s.SysMB)

	p.intervalStart = now
	p.frames = 0
	p.skipped = 0
	p.worst = 0
	return s, true
}

func (p *Profiler) collect(elapsed time.Duration) Stats {
	p.readMem(&p.memStats)
	m := &p.memStats

	s := Stats{
		Frames:     p.frames,
		Skipped:    p.skipped,
		FPS:        float64(p.frames) / elapsed.Seconds(),
		AvgFrame:   elapsed / time.Duration(p.frames),
		WorstFrame: p.worst,
		HeapMB:     float64(m.Alloc) / 1024 / 1024,
		SysMB:      float64(m.Sys) / 1024 / 1024,
		GCCount:    m.NumGC,
	}
	if m.TotalAlloc >= p.lastTotalAlloc {
		s.AllocRateMB = float64(m.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds()
	}

	// PauseNs is a ring of the last 256 pauses.
	if m.NumGC > 0 {
		s.LastPause = time.Duration(m.PauseNs[(m.NumGC-1)%256])
		start := p.lastGCCount
		if m.NumGC-start > 256 {
			start = m.NumGC - 256
		}
		for i := start; i < m.NumGC; i++ {
			s.MaxPause = max(s.MaxPause, time.Duration(m.PauseNs[i%256]))
		}
	}

	p.lastGCCount = m.NumGC
	p.lastTotalAlloc = m.TotalAlloc
	return s
}
