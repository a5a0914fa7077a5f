package rlf

import (
	"math"
	"testing"
)

func TestNormalizeClockPlain(t *testing.T) {
	got := NormalizeClock([]uint32{3_600_000, 7_200_000, 10_800_000})
	want := []float64{0, 1, 2}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("hours[%d]=%v want %v", i, got[i], want[i])
		}
	}
}

func TestNormalizeClockMidnightRollover(t *testing.T) {
	got := NormalizeClock([]uint32{86_399_000, 86_399_900, 500, 1_200})
	if got[0] != 0 {
		t.Fatalf("first element=%v want 0", got[0])
	}
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("axis decreases at %d: %v", i, got)
		}
	}
	// 500 ms past midnight is 86,400,500 ms absolute, 1500 ms after start.
	want := 1500.0 / 3_600_000.0
	if math.Abs(got[2]-want) > 1e-12 {
		t.Fatalf("post-rollover hours=%v want %v", got[2], want)
	}
}

func TestNormalizeClockDoubleRollover(t *testing.T) {
	got := NormalizeClock([]uint32{86_000_000, 100, 86_000_000, 200})
	for i := 1; i < len(got); i++ {
		if got[i] < got[i-1] {
			t.Fatalf("axis decreases at %d: %v", i, got)
		}
	}
	// Two wraps accumulate two days.
	want := (200.0 + 2*86_400_000.0 - 86_000_000.0) / 3_600_000.0
	if math.Abs(got[3]-want) > 1e-9 {
		t.Fatalf("hours[3]=%v want %v", got[3], want)
	}
}

func TestNormalizeClockMasksFlagBit(t *testing.T) {
	got := NormalizeClock([]uint32{0x80000000 | 1000, 0x80000000 | 2000})
	want := 1000.0 / 3_600_000.0
	if math.Abs(got[1]-want) > 1e-12 {
		t.Fatalf("flag bit not masked: hours[1]=%v want %v", got[1], want)
	}
}

func TestNormalizeClockEmpty(t *testing.T) {
	if got := NormalizeClock(nil); got != nil {
		t.Fatalf("got %v want nil", got)
	}
}

func TestHoursByPositionMidpoint(t *testing.T) {
	got := HoursByPosition([]int64{0, 100, 200}, []float64{0, 1, 2}, []int64{150})
	if len(got) != 1 || math.Abs(got[0]-1.5) > 1e-12 {
		t.Fatalf("got %v want [1.5]", got)
	}
}

func TestHoursByPositionClampsEnds(t *testing.T) {
	got := HoursByPosition([]int64{100, 200}, []float64{1, 2}, []int64{0, 300})
	if got[0] != 1 || got[1] != 2 {
		t.Fatalf("got %v want [1 2]", got)
	}
}

func TestHoursByPositionEmptySides(t *testing.T) {
	if got := HoursByPosition(nil, nil, []int64{1, 2}); got != nil {
		t.Fatalf("empty reference: got %v want nil", got)
	}
	if got := HoursByPosition([]int64{1}, []float64{1}, nil); got != nil {
		t.Fatalf("empty target: got %v want nil", got)
	}
}
