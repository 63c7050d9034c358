package profiler

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRecordStats(t *testing.T) {
	p := New(Options{})
	p.Record(StageInfer, 10*time.Millisecond)
	p.Record(StageInfer, 30*time.Millisecond)
	p.Record(StageInfer, 20*time.Millisecond)

	s, ok := p.Stats(StageInfer)
	require.True(t, ok)
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 3, s.Samples)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
	assert.Equal(t, 10*time.Millisecond, s.Min)
	assert.Equal(t, 30*time.Millisecond, s.Max)
	assert.Equal(t, 20*time.Millisecond, s.Last)
	assert.Equal(t, 20*time.Millisecond, s.P50)
	assert.Equal(t, 30*time.Millisecond, s.P95)
	assert.InDelta(t, float64(10*time.Millisecond), float64(s.StdDev), float64(time.Microsecond))

	_, ok = p.Stats(StagePreprocess)
	assert.False(t, ok)
}

func TestMaxSamplesWindow(t *testing.T) {
	p := New(Options{MaxSamples: 2})
	p.Record("x", 1*time.Second)
	p.Record("x", 2*time.Second)
	p.Record("x", 4*time.Second)

	s, _ := p.Stats("x")
	assert.Equal(t, int64(3), s.Count)
	assert.Equal(t, 2, s.Samples)
	assert.Equal(t, 3*time.Second, s.Mean)
	assert.Equal(t, 1*time.Second, s.Min)
	assert.Equal(t, 4*time.Second, s.P95)
}

func TestSingleSampleStdDev(t *testing.T) {
	p := New(Options{})
	p.Record(StageInfer, time.Millisecond)

	s, _ := p.Stats(StageInfer)
	assert.Zero(t, s.StdDev)
	assert.Equal(t, time.Millisecond, s.P50)
}

func TestSnapshotOrderAndReset(t *testing.T) {
	p := New(Options{})
	for _, stage := range []string{StagePreprocess, StageLoadData, StageInfer, StagePostprocess, StagePreprocess} {
		p.Record(stage, time.Millisecond)
	}

	var names []string
	for _, s := range p.Snapshot() {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{StagePreprocess, StageLoadData, StageInfer, StagePostprocess}, names)

	p.Reset()
	assert.Empty(t, p.Snapshot())
}

func TestStartStage(t *testing.T) {
	p := New(Options{})
	stop := p.StartStage(StageLoadModel)
	d := stop()

	s, ok := p.Stats(StageLoadModel)
	require.True(t, ok)
	assert.Equal(t, d, s.Last)
}

func TestConcurrentRecord(t *testing.T) {
	p := New(Options{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				p.Record(StageInfer, time.Microsecond)
			}
		}()
	}
	wg.Wait()

	s, _ := p.Stats(StageInfer)
	assert.Equal(t, int64(800), s.Count)
}

func TestReports(t *testing.T) {
	p := New(Options{})
	p.Record(StageInfer, 1500*time.Microsecond)

	var buf bytes.Buffer
	require.NoError(t, p.WriteReport(&buf))
	assert.Contains(t, buf.String(), "infer: avg=1.5ms, min=1.5ms, max=1.5ms, p95=1.5ms, count=1")
	assert.Contains(t, buf.String(), "MEMORY USAGE")

	core, logs := observer.New(zapcore.InfoLevel)
	p.LogReport(zap.New(core).Sugar())
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, StageInfer, logs.All()[0].ContextMap()["stage"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.0 KB", formatBytes(1024))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
