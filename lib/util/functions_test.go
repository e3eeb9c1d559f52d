package util

import (
	"errors"
	"testing"
	"time"
)

func TestHashString(t *testing.T) {
	if HashString("A1", 0) != HashString("A1", 0) {
		t.Error("HashString should be deterministic")
	}

	if HashString("A1", 0) == HashString("A2", 0) {
		t.Error("Different strings should (very likely) hash differently")
	}

	if HashString("A1", 1) == HashString("A1", 2) {
		t.Error("Different seeds should change the hash")
	}
}

func TestCombineHashes(t *testing.T) {
	a, b := HashString("a", 0), HashString("b", 0)
	if CombineHashes(a, b) == CombineHashes(b, a) {
		t.Error("CombineHashes should be order sensitive")
	}
}

func TestAdjustInt(t *testing.T) {
	tests := []struct {
		value, min, max, expected int
	}{
		{5, 4, 256, 5},
		{1, 4, 256, 4},
		{4, 4, 256, 4},
		{300, 4, 256, 256},
		{256, 4, 256, 256},
		{-7, -7, -7, -7},
	}

	for _, tt := range tests {
		got, err := AdjustInt(tt.value, tt.min, tt.max)
		if err != nil {
			t.Errorf("AdjustInt(%d, %d, %d) returned error: %v", tt.value, tt.min, tt.max, err)
		}
		if got != tt.expected {
			t.Errorf("AdjustInt(%d, %d, %d) = %d, expected %d", tt.value, tt.min, tt.max, got, tt.expected)
		}
	}

	if _, err := AdjustInt(1, 2, 1); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for min > max, got %v", err)
	}
}

func TestAdjustDuration(t *testing.T) {
	min, max := 100*time.Millisecond, time.Hour

	if got, _ := AdjustDuration(time.Millisecond, min, max); got != min {
		t.Errorf("Expected %s, got %s", min, got)
	}
	if got, _ := AdjustDuration(2*time.Hour, min, max); got != max {
		t.Errorf("Expected %s, got %s", max, got)
	}
	if got, _ := AdjustDuration(time.Minute, min, max); got != time.Minute {
		t.Errorf("Expected %s, got %s", time.Minute, got)
	}
	if _, err := AdjustDuration(time.Minute, max, min); !errors.Is(err, ErrInvalidRange) {
		t.Errorf("Expected ErrInvalidRange for min > max, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustAdjustDuration should panic for min > max")
		}
	}()
	MustAdjustDuration(time.Minute, max, min)
}
