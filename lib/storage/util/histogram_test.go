package util

import (
	"math"
	"sync"
	"testing"
)

// TestNewStats tests the summary statistics helper
func TestNewStats(t *testing.T) {
	stats := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if stats.Mean != 5 {
		t.Errorf("Mean should be 5, got %f", stats.Mean)
	}
	if stats.Min != 2 {
		t.Errorf("Min should be 2, got %f", stats.Min)
	}
	if stats.Max != 9 {
		t.Errorf("Max should be 9, got %f", stats.Max)
	}
	if math.Abs(stats.StdDeviation-2) > 1e-9 {
		t.Errorf("StdDeviation should be 2, got %f", stats.StdDeviation)
	}
}

// TestNewStatsEmpty tests statistics over no values
func TestNewStatsEmpty(t *testing.T) {
	stats := NewStats(nil)

	if stats != (Stats{}) {
		t.Errorf("Stats over no values should be all zeros, got %+v", stats)
	}
}

// TestSizeHistogramEmpty tests the empty histogram
func TestSizeHistogramEmpty(t *testing.T) {
	h := NewSizeHistogram()

	if h.Count() != 0 {
		t.Errorf("New histogram should have no samples, has %d", h.Count())
	}
	if h.AverageSize() != 0 {
		t.Errorf("Empty histogram average should be 0, got %d", h.AverageSize())
	}
	if h.MedianEstimate() != 0 {
		t.Errorf("Empty histogram median should be 0, got %d", h.MedianEstimate())
	}
}

// TestSizeHistogramAverage tests the exact average
func TestSizeHistogramAverage(t *testing.T) {
	h := NewSizeHistogram()

	h.AddSample(100)
	h.AddSample(200)
	h.AddSample(300)

	if h.Count() != 3 {
		t.Errorf("Histogram should have 3 samples, has %d", h.Count())
	}
	if h.AverageSize() != 200 {
		t.Errorf("Average should be 200, got %d", h.AverageSize())
	}
}

// TestSizeHistogramPercentile tests the bucket-midpoint estimates
func TestSizeHistogramPercentile(t *testing.T) {
	h := NewSizeHistogram()

	// 100 small records, one huge one.
	for i := 0; i < 100; i++ {
		h.AddSample(32) // first bucket (<= 64)
	}
	h.AddSample(2 * 1024 * 1024)

	median := h.MedianEstimate()
	if median != 32 {
		t.Errorf("Median estimate should be the first bucket midpoint 32, got %d", median)
	}

	p100 := h.PercentileEstimate(100)
	if p100 <= median {
		t.Errorf("P100 estimate %d should exceed the median %d", p100, median)
	}

	if got := h.PercentileEstimate(101); got != 0 {
		t.Errorf("Out-of-range percentile should return 0, got %d", got)
	}
}

// TestSizeHistogramReset tests clearing all data
func TestSizeHistogramReset(t *testing.T) {
	h := NewSizeHistogram()

	h.AddSample(1000)
	h.AddSample(5000)
	h.Reset()

	if h.Count() != 0 {
		t.Errorf("Reset histogram should have no samples, has %d", h.Count())
	}
	if h.AverageSize() != 0 {
		t.Errorf("Reset histogram average should be 0, got %d", h.AverageSize())
	}
}

// TestSizeHistogramConcurrent tests concurrent sampling
func TestSizeHistogramConcurrent(t *testing.T) {
	h := NewSizeHistogram()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				h.AddSample(512)
			}
		}()
	}
	wg.Wait()

	if h.Count() != 8000 {
		t.Errorf("Histogram should have 8000 samples, has %d", h.Count())
	}
	if h.AverageSize() != 512 {
		t.Errorf("Average should be 512, got %d", h.AverageSize())
	}
}
