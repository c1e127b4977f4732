package technical

import (
	"math"
	"testing"
)

// seq appends linear segments (each segment: from current last value toward
// target over n steps, exclusive of the starting point).
func seq(start float64, segs ...[2]float64) []float64 {
	out := []float64{start}
	for _, s := range segs {
		target, n := s[0], int(s[1])
		from := out[len(out)-1]
		step := (target - from) / float64(n)
		for i := 1; i <= n; i++ {
			out = append(out, from+step*float64(i))
		}
	}
	return out
}

func TestDoubleTopDetectsBreak(t *testing.T) {
	// Two highs within tolerance, trough at 100 between them, close at 97:
	// 3% break below the trough scaled by divisor 5.
	closes := seq(100,
		[2]float64{110.5, 15}, // run-up to first peak
		[2]float64{100, 5},    // trough
		[2]float64{110.4, 5},  // second peak
		[2]float64{97, 14},    // confirming break
	)
	got := DoubleTop(closes, 40, 2.0, 5)
	if math.Abs(got-(-0.6)) > 1e-6 {
		t.Fatalf("expected -0.6, got %.6f", got)
	}
}

func TestDoubleTopRejectsUnequalPeaks(t *testing.T) {
	closes := seq(100,
		[2]float64{110, 15},
		[2]float64{100, 5},
		[2]float64{120, 5}, // second peak 9% above the first
		[2]float64{97, 14},
	)
	if got := DoubleTop(closes, 40, 2.0, 5); got != 0 {
		t.Fatalf("unequal peaks must not score, got %.6f", got)
	}
}

func TestDoubleTopRequiresBreak(t *testing.T) {
	closes := seq(100,
		[2]float64{110.5, 15},
		[2]float64{100, 5},
		[2]float64{110.4, 5},
		[2]float64{101, 14}, // held above the trough
	)
	if got := DoubleTop(closes, 40, 2.0, 5); got != 0 {
		t.Fatalf("no break below trough must not score, got %.6f", got)
	}
}

func TestInvertedHeadShouldersDetectsBreak(t *testing.T) {
	closes := seq(106,
		[2]float64{100, 10},   // left shoulder
		[2]float64{104, 4},    // peak between
		[2]float64{95, 4},     // head
		[2]float64{104.5, 4},  // second peak, neckline
		[2]float64{100.5, 4},  // right shoulder
		[2]float64{107, 13},   // break above neckline
	)
	got := InvertedHeadShoulders(closes, 40, 3.0, 5)
	want := (107 - 104.5) / 104.5 * 100 / 5
	if math.Abs(got-want) > 1e-3 {
		t.Fatalf("expected %.4f, got %.4f", want, got)
	}
	if got <= 0 {
		t.Fatalf("pattern must be bullish")
	}
}

func TestInvertedHeadShouldersRequiresInteriorHead(t *testing.T) {
	// Monotonic decline then rise: lowest trough is not between two shoulders.
	closes := seq(110, [2]float64{90, 20}, [2]float64{112, 19})
	if got := InvertedHeadShoulders(closes, 40, 3.0, 5); got != 0 {
		t.Fatalf("V-shape must not score, got %.6f", got)
	}
}

func TestFlagBullBreakout(t *testing.T) {
	closes := []float64{100, 101.2, 102.4, 103.6, 104.8, 106}
	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			closes = append(closes, 104.5)
		} else {
			closes = append(closes, 105.5)
		}
	}
	closes = append(closes, 106.5, 107, 107.5, 108)
	got := Flag(closes, 30, 3)
	want := (108 - 106) / 106.0 * 100 / 3
	if math.Abs(got-want) > 1e-3 {
		t.Fatalf("expected %.4f, got %.4f", want, got)
	}
}

func TestFlagRequiresPole(t *testing.T) {
	// Drift with no 3% pole move in the first five bars.
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + 0.1*float64(i)
	}
	if got := Flag(closes, 30, 3); got != 0 {
		t.Fatalf("no pole must not score, got %.6f", got)
	}
}

func TestBullishDivergence(t *testing.T) {
	closes := seq(100,
		[2]float64{100, 9}, // flat base for oscillator warmup
		[2]float64{90, 6},  // steep first leg down
		[2]float64{95, 6},  // relief bounce
		[2]float64{89, 6},  // lower price low on weaker selling
		[2]float64{91, 2},
	)
	if !BullishDivergence(closes, 14, 30) {
		t.Fatalf("expected divergence: lower low in price, higher oscillator low")
	}
	if BullishDivergence(ramp(100, -1, 30), 14, 30) {
		t.Fatalf("straight decline has no divergence")
	}
}
