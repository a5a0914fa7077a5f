package rlf

const (
	clockFlagMask = 0x7FFFFFFF
	msPerDay      = 86_400_000.0
	msPerHour     = 3_600_000.0
	// rolloverStep is the backward jump, in milliseconds, below which a
	// clock discontinuity is treated as a midnight wrap rather than jitter.
	rolloverStep = -1_000_000.0
)

// NormalizeClock converts raw milliseconds-since-midnight clock readings
// into hours since the first reading. Bit 31 is a firmware flag and is
// masked off. A large backward jump marks a midnight UTC rollover and adds
// a day to that and every later reading; wraps accumulate, so the result
// is non-decreasing across multi-day missions. The first element is 0.
func NormalizeClock(raw []uint32) []float64 {
	if len(raw) == 0 {
		return nil
	}
	ms := make([]float64, len(raw))
	for i, r := range raw {
		ms[i] = float64(r & clockFlagMask)
	}
	var carry float64
	out := make([]float64, len(ms))
	out[0] = ms[0]
	for i := 1; i < len(ms); i++ {
		if ms[i]-ms[i-1] < rolloverStep {
			carry += msPerDay
		}
		out[i] = ms[i] + carry
	}
	base := out[0]
	for i := range out {
		out[i] = (out[i] - base) / msPerHour
	}
	return out
}

// HoursByPosition assigns times to records that carry no embedded clock by
// interpolating the reference time axis over file byte offsets. Outside
// the reference range the end values are held. An empty reference or empty
// target yields an empty result; these types simply stay unstamped.
func HoursByPosition(refOffsets []int64, refHours []float64, at []int64) []float64 {
	if len(at) == 0 || len(refOffsets) == 0 || len(refOffsets) != len(refHours) {
		return nil
	}
	out := make([]float64, len(at))
	for i, x := range at {
		out[i] = interpAt(refOffsets, refHours, x)
	}
	return out
}

func interpAt(xs []int64, ys []float64, x int64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	n := len(xs)
	if x >= xs[n-1] {
		return ys[n-1]
	}
	// Binary search for the first offset beyond x.
	lo, hi := 0, n-1
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if xs[mid] <= x {
			lo = mid
		} else {
			hi = mid
		}
	}
	x0, x1 := xs[lo], xs[hi]
	if x1 == x0 {
		return ys[lo]
	}
	frac := float64(x-x0) / float64(x1-x0)
	return ys[lo] + frac*(ys[hi]-ys[lo])
}
