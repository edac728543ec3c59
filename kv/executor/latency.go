package executor

import (
	"sync"

	"github.com/montanaflynn/stats"
)

// MedianFilter works as a median filter with specified window size.
// There are at most `size` data points for calculating. It is safe for concurrent use.
type MedianFilter struct {
	mu      sync.Mutex
	records []float64
	size    uint64
	count   uint64
}

// NewMedianFilter returns a MedianFilter.
func NewMedianFilter(size int) *MedianFilter {
	if size < 1 {
		size = 1
	}
	return &MedianFilter{
		records: make([]float64, size),
		size:    uint64(size),
	}
}

// Add adds a data point.
func (r *MedianFilter) Add(n float64) {
	r.mu.Lock()
	r.records[r.count%r.size] = n
	r.count++
	r.mu.Unlock()
}

// Get returns the median of the data set.
func (r *MedianFilter) Get() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return 0
	}
	records := r.records
	if r.count < r.size {
		records = r.records[:r.count]
	}
	median, _ := stats.Median(records)
	return median
}
