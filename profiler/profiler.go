// Package profiler - Per-stage timing for the detection pipeline.
package profiler

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Pipeline stage names.
const (
	StageLoadModel   = "load_model"
	StagePreprocess  = "preprocess"
	StageLoadData    = "load_data"
	StageInfer       = "infer"
	StagePostprocess = "postprocess"
)

// Options configures the profiler.
type Options struct {
	// MaxSamples specifies maximum number of samples kept per stage (default: 600)
	MaxSamples int
}

// Profiler records wall-clock durations per named stage. It is safe for concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	maxSamples int
	startTime  time.Time
	stages     map[string]*TimeTracker
	order      []string
}

// TimeTracker tracks timing statistics for one stage.
type TimeTracker struct {
	name      string
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

// Stats is a snapshot of one stage's timings. Min, Max and Count cover every recorded sample;
// the rest cover the retained window. StdDev is zero with fewer than two samples.
type Stats struct {
	Name    string        `json:"name"`
	Count   int64         `json:"count"`
	Samples int           `json:"samples"`
	Mean    time.Duration `json:"mean"`
	Min     time.Duration `json:"min"`
	Max     time.Duration `json:"max"`
	Last    time.Duration `json:"last"`
	P50     time.Duration `json:"p50"`
	P95     time.Duration `json:"p95"`
	StdDev  time.Duration `json:"std_dev"`
}

// New creates a new profiler with the specified options.
//
// Arguments:
// - opts: Configuration options for the profiler
//
// Returns:
// - A configured Profiler instance
func New(opts Options) *Profiler {
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	return &Profiler{
		maxSamples: opts.MaxSamples,
		startTime:  time.Now(),
		stages:     make(map[string]*TimeTracker),
	}
}

// StartStage begins timing a stage.
//
// Arguments:
// - name: The name of the stage to track
//
// Returns:
// - A function to call when the stage completes. It returns the measured duration.
func (p *Profiler) StartStage(name string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		duration := time.Since(start)
		p.Record(name, duration)
		return duration
	}
}

// Record adds one duration sample to a stage.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, exists := p.stages[name]
	if !exists {
		tracker = &TimeTracker{
			name:    name,
			minTime: duration,
			maxTime: duration,
		}
		p.stages[name] = tracker
		p.order = append(p.order, name)
	}

	tracker.durations = append(tracker.durations, duration)
	if len(tracker.durations) > p.maxSamples {
		// Remove oldest sample
		tracker.totalTime -= tracker.durations[0]
		tracker.durations = tracker.durations[1:]
	}

	tracker.totalTime += duration
	tracker.count++

	if duration < tracker.minTime {
		tracker.minTime = duration
	}
	if duration > tracker.maxTime {
		tracker.maxTime = duration
	}
}

// Stats returns the statistics of one stage.
func (p *Profiler) Stats(name string) (Stats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	tracker, ok := p.stages[name]
	if !ok {
		return Stats{}, false
	}
	return tracker.stats(), true
}

// Snapshot returns the statistics of every stage in first-recorded order.
func (p *Profiler) Snapshot() []Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Stats, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.stages[name].stats())
	}
	return out
}

// Reset drops every recorded sample.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stages = make(map[string]*TimeTracker)
	p.order = nil
	p.startTime = time.Now()
}

func (t *TimeTracker) stats() Stats {
	s := Stats{
		Name:    t.name,
		Count:   t.count,
		Samples: len(t.durations),
		Min:     t.minTime,
		Max:     t.maxTime,
	}
	n := len(t.durations)
	if n == 0 {
		return s
	}
	s.Mean = t.totalTime / time.Duration(n)
	s.Last = t.durations[n-1]

	samples := make([]float64, n)
	for i, d := range t.durations {
		samples[i] = float64(d)
	}
	sort.Float64s(samples)
	s.P50 = time.Duration(stat.Quantile(0.5, stat.Empirical, samples, nil))
	s.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, samples, nil))
	if n > 1 {
		s.StdDev = time.Duration(stat.StdDev(samples, nil))
	}
	return s
}

// WriteReport prints the stage timings and memory usage.
func (p *Profiler) WriteReport(w io.Writer) error {
	p.mu.RLock()
	uptime := time.Since(p.startTime)
	p.mu.RUnlock()

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	if _, err := fmt.Fprintf(w, "Uptime: %v\n", uptime.Truncate(time.Millisecond)); err != nil {
		return err
	}

	stages := p.Snapshot()
	if len(stages) > 0 {
		fmt.Fprintf(w, "\nSTAGE TIMINGS:\n")
		for _, s := range stages {
			fmt.Fprintf(w, "  %s: avg=%v, min=%v, max=%v, p95=%v, count=%d\n",
				s.Name,
				s.Mean.Truncate(time.Microsecond),
				s.Min.Truncate(time.Microsecond),
				s.Max.Truncate(time.Microsecond),
				s.P95.Truncate(time.Microsecond),
				s.Samples)
		}
	}

	fmt.Fprintf(w, "\nMEMORY USAGE:\n")
	fmt.Fprintf(w, "  Heap Alloc: %s\n", formatBytes(ms.HeapAlloc))
	fmt.Fprintf(w, "  Sys: %s\n", formatBytes(ms.Sys))
	fmt.Fprintf(w, "  GC Cycles: %d\n", ms.NumGC)
	if vm, err := mem.VirtualMemory(); err == nil {
		fmt.Fprintf(w, "  System: %s used of %s\n", formatBytes(vm.Total-vm.Available), formatBytes(vm.Total))
	}
	return nil
}

// LogReport emits one log line per stage.
func (p *Profiler) LogReport(log *zap.SugaredLogger) {
	for _, s := range p.Snapshot() {
		log.Infow("stage timing",
			"stage", s.Name,
			"avg", s.Mean,
			"min", s.Min,
			"max", s.Max,
			"p95", s.P95,
			"count", s.Samples)
	}
}

// formatBytes formats byte counts in human-readable format.
func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
