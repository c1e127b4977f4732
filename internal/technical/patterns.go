package technical

import "greenlight-go/internal/stats"

// localExtrema returns indices of local maxima and minima with window bars on
// each side.
func localExtrema(closes []float64, window int) (peaks, troughs []int) {
	n := len(closes)
	for i := window; i < n-window; i++ {
		isPeak, isTrough := true, true
		for j := i - window; j <= i+window; j++ {
			if j == i {
				continue
			}
			if closes[j] > closes[i] {
				isPeak = false
			}
			if closes[j] < closes[i] {
				isTrough = false
			}
		}
		if isPeak {
			peaks = append(peaks, i)
		}
		if isTrough {
			troughs = append(troughs, i)
		}
	}
	return peaks, troughs
}

// DoubleTop detects two similar highs followed by a break below the
// intervening trough. Returns a bearish score in [-1, 0], 0 when absent.
func DoubleTop(closes []float64, lookback int, tolerancePct, divisor float64) float64 {
	if len(closes) < lookback || divisor <= 0 {
		return 0
	}
	use := closes[len(closes)-lookback:]
	peaks, troughs := localExtrema(use, 2)
	if len(peaks) < 2 || len(troughs) < 1 {
		return 0
	}
	p1, p2 := peaks[len(peaks)-2], peaks[len(peaks)-1]
	if p2 <= p1 || use[p1] <= 0 {
		return 0
	}
	diffPct := abs(use[p2]-use[p1]) / use[p1] * 100
	if diffPct > tolerancePct {
		return 0
	}
	troughVal := 0.0
	found := false
	for _, t := range troughs {
		if t > p1 && t < p2 && (!found || use[t] < troughVal) {
			troughVal = use[t]
			found = true
		}
	}
	if !found || troughVal <= 0 {
		return 0
	}
	last := use[len(use)-1]
	if last >= troughVal {
		return 0
	}
	breakPct := (troughVal - last) / troughVal * 100
	return -stats.Clamp(breakPct/divisor, 0, 1)
}

// InvertedHeadShoulders detects three troughs with a lower head and a
// confirming break above the neckline. Returns a bullish score in [0, 1].
func InvertedHeadShoulders(closes []float64, lookback int, tolerancePct, divisor float64) float64 {
	if len(closes) < lookback || divisor <= 0 {
		return 0
	}
	use := closes[len(closes)-lookback:]
	peaks, troughs := localExtrema(use, 2)
	if len(troughs) < 3 || len(peaks) < 2 {
		return 0
	}
	t := troughs[len(troughs)-3:]
	headIdx, leftIdx, rightIdx := t[0], t[0], t[0]
	for _, i := range t {
		if use[i] < use[headIdx] {
			headIdx = i
		}
		if i < leftIdx {
			leftIdx = i
		}
		if i > rightIdx {
			rightIdx = i
		}
	}
	if headIdx == leftIdx || headIdx == rightIdx {
		return 0
	}
	left, right, head := use[leftIdx], use[rightIdx], use[headIdx]
	if head >= left || head >= right || left <= 0 {
		return 0
	}
	if abs(right-left)/left*100 > tolerancePct {
		return 0
	}
	// Neckline: highest peak between the shoulders.
	neck := 0.0
	count := 0
	for _, p := range peaks {
		if p > leftIdx && p < rightIdx {
			count++
			if use[p] > neck {
				neck = use[p]
			}
		}
	}
	if count < 2 || neck <= 0 {
		return 0
	}
	last := use[len(use)-1]
	if last <= neck {
		return 0
	}
	breakPct := (last - neck) / neck * 100
	return stats.Clamp(breakPct/divisor, 0, 1)
}

// HeadShoulders detects the classic bearish head-and-shoulders with a break
// below the neckline. Returns a bearish score in [-1, 0]. Used by the
// higher-timeframe structure check to pause new longs.
func HeadShoulders(closes []float64, lookback int, tolerancePct, divisor float64) float64 {
	if len(closes) < lookback || divisor <= 0 {
		return 0
	}
	use := closes[len(closes)-lookback:]
	peaks, troughs := localExtrema(use, 2)
	if len(peaks) < 3 || len(troughs) < 2 {
		return 0
	}
	p := peaks[len(peaks)-3:]
	headIdx, leftIdx, rightIdx := p[0], p[0], p[0]
	for _, i := range p {
		if use[i] > use[headIdx] {
			headIdx = i
		}
		if i < leftIdx {
			leftIdx = i
		}
		if i > rightIdx {
			rightIdx = i
		}
	}
	if headIdx == leftIdx || headIdx == rightIdx {
		return 0
	}
	left, right, head := use[leftIdx], use[rightIdx], use[headIdx]
	if head <= left || head <= right || left <= 0 {
		return 0
	}
	if abs(right-left)/left*100 > tolerancePct {
		return 0
	}
	neck := 0.0
	count := 0
	for _, t := range troughs {
		if t > leftIdx && t < rightIdx {
			count++
			if neck == 0 || use[t] < neck {
				neck = use[t]
			}
		}
	}
	if count < 2 || neck <= 0 {
		return 0
	}
	last := use[len(use)-1]
	if last >= neck {
		return 0
	}
	breakPct := (neck - last) / neck * 100
	return -stats.Clamp(breakPct/divisor, 0, 1)
}

// Flag detects a strong pole move followed by consolidation and a breakout in
// the pole's direction. Positive for bull flags, negative for bear flags.
func Flag(closes []float64, lookback int, divisor float64) float64 {
	const (
		poleBars       = 5
		poleMinMovePct = 3.0
		flagBarsMin    = 3
		flagBarsMax    = 15
	)
	if len(closes) < lookback || lookback < poleBars+flagBarsMax+2 || divisor <= 0 {
		return 0
	}
	use := closes[len(closes)-lookback:]
	start := use[0]
	if start <= 0 {
		return 0
	}
	poleMovePct := (use[poleBars] - start) / start * 100
	if abs(poleMovePct) < poleMinMovePct {
		return 0
	}
	last := use[len(use)-1]
	best := 0.0
	for flen := flagBarsMin; flen <= flagBarsMax && poleBars+flen < len(use)-1; flen++ {
		flagHigh, flagLow := use[poleBars], use[poleBars]
		for _, v := range use[poleBars : poleBars+flen+1] {
			if v > flagHigh {
				flagHigh = v
			}
			if v < flagLow {
				flagLow = v
			}
		}
		if poleMovePct > 0 {
			if last > flagHigh && flagHigh > 0 {
				breakPct := (last - flagHigh) / flagHigh * 100
				if s := stats.Clamp(breakPct/divisor, 0, 1); s > best {
					best = s
				}
			}
		} else {
			if last < flagLow && flagLow > 0 {
				breakPct := (flagLow - last) / flagLow * 100
				if s := -stats.Clamp(breakPct/divisor, 0, 1); s < best {
					best = s
				}
			}
		}
	}
	return best
}

// BullishDivergence reports a price lower-low paired with an oscillator
// higher-low across the last two troughs in the lookback window.
func BullishDivergence(closes []float64, period, lookback int) bool {
	if len(closes) < lookback || lookback < period+5 {
		return false
	}
	use := closes[len(closes)-lookback:]
	_, troughs := localExtrema(use, 2)
	if len(troughs) < 2 {
		return false
	}
	t1, t2 := troughs[len(troughs)-2], troughs[len(troughs)-1]
	if t2 <= t1 {
		return false
	}
	r1, ok1 := momentumValue(use[:t1+1], period)
	r2, ok2 := momentumValue(use[:t2+1], period)
	if !ok1 || !ok2 {
		return false
	}
	return use[t2] < use[t1] && r2 > r1
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
