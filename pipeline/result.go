package pipeline

import (
	"time"
)

// BenchmarkRow records one factory's lifecycle timings for a run. Rows are
// collected only when benchmarking is enabled in the settings.
type BenchmarkRow struct {
	Factory string
	Stage   int
	Read    time.Duration
	Process time.Duration
	Write   time.Duration
	Total   time.Duration
}
