package pluginhost

import (
	"context"
	"math"
	"sort"
	"time"

	"forensiq/pkg/types"
)

// BenchmarkStats summarizes N sandboxed executions, in the teacher's
// stats_collector.go aggregation style (min/max/mean/p95 over a bounded
// in-memory sample set rather than a streaming histogram, since
// benchmark runs are one-shot diagnostic calls, not continuous metrics).
type BenchmarkStats struct {
	Iterations   int
	Failures     int
	MinWallClock time.Duration
	MaxWallClock time.Duration
	MeanWallClock time.Duration
	P95WallClock time.Duration
	PeakRSSMiB   uint64
}

func runBenchmark(ctx context.Context, sandbox *Sandbox, parser types.Parser, sourceFile string, raw []byte, iterations int) (*BenchmarkStats, error) {
	if iterations <= 0 {
		iterations = 1
	}
	samples := make([]time.Duration, 0, iterations)
	stats := &BenchmarkStats{Iterations: iterations}

	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, err := sandbox.Run(ctx, parser, sourceFile, raw)
		elapsed := time.Since(start)
		if err != nil {
			stats.Failures++
			continue
		}
		samples = append(samples, elapsed)
	}

	if len(samples) == 0 {
		return stats, nil
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	stats.MinWallClock = samples[0]
	stats.MaxWallClock = samples[len(samples)-1]

	var total time.Duration
	for _, s := range samples {
		total += s
	}
	stats.MeanWallClock = total / time.Duration(len(samples))

	p95Index := int(math.Ceil(0.95*float64(len(samples)))) - 1
	if p95Index < 0 {
		p95Index = 0
	}
	if p95Index >= len(samples) {
		p95Index = len(samples) - 1
	}
	stats.P95WallClock = samples[p95Index]

	return stats, nil
}
