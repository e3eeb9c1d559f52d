package util

import (
	"math"
	"testing"
)

func TestNewStats(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		if s := NewStats(nil); s != (Stats{}) {
			t.Errorf("Expected zero stats, got %+v", s)
		}
	})

	t.Run("values", func(t *testing.T) {
		s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
		if s.Mean != 5 {
			t.Errorf("Expected mean 5, got %f", s.Mean)
		}
		if s.StdDeviation != 2 {
			t.Errorf("Expected std deviation 2, got %f", s.StdDeviation)
		}
		if s.Min != 2 || s.Max != 9 {
			t.Errorf("Expected min 2 and max 9, got %f and %f", s.Min, s.Max)
		}
		if math.Abs(s.MinMaxRatio-2.0/9.0) > 1e-9 {
			t.Errorf("Expected min/max ratio %f, got %f", 2.0/9.0, s.MinMaxRatio)
		}
	})
}

func TestNewDistributionStats(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if even.DistributionQuality != 1 {
		t.Errorf("Even distribution should have quality 1, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("Skewed distribution should have lower quality (%f >= %f)", skewed.DistributionQuality, even.DistributionQuality)
	}

	empty := NewDistributionStats([]float64{0, 0})
	if empty.DistributionQuality != 1 {
		t.Errorf("Empty divisions count as even, got %f", empty.DistributionQuality)
	}
}
