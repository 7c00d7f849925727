package beat

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// trackBeats runs dynamic-programming beat tracking over the onset envelope
// for a beat period given in frames. It returns beat frame indices in order.
func (a *Analyzer) trackBeats(env []float64, period float64) []int {
	n := len(env)
	if n == 0 || period < 1 {
		return nil
	}
	std := stat.StdDev(env, nil)
	if std <= 0 || math.IsNaN(std) {
		return nil
	}

	local := localScore(env, std, period)
	thresh := 0.01 * floats.Max(local)

	minOff := int(math.Round(period / 2))
	maxOff := int(math.Round(2 * period))
	if minOff < 1 {
		minOff = 1
	}

	// transition cost for each candidate offset
	txwt := make([]float64, maxOff+1)
	for off := minOff; off <= maxOff; off++ {
		l := math.Log(float64(off) / period)
		txwt[off] = -a.Tightness * l * l
	}

	cum := make([]float64, n)
	back := make([]int, n)
	started := false
	for i := 0; i < n; i++ {
		best, bestJ := math.Inf(-1), -1
		for off := maxOff; off >= minOff; off-- {
			j := i - off
			c := txwt[off]
			if j >= 0 {
				c += cum[j]
			}
			if c > best {
				best, bestJ = c, j
			}
		}
		cum[i] = local[i] + best
		back[i] = -1
		if started || local[i] >= thresh {
			started = true
			if bestJ >= 0 {
				back[i] = bestJ
			}
		}
	}

	last := lastBeat(cum)
	if last < 0 {
		return nil
	}
	var beats []int
	for i := last; i >= 0; i = back[i] {
		beats = append(beats, i)
	}
	for l, r := 0, len(beats)-1; l < r; l, r = l+1, r-1 {
		beats[l], beats[r] = beats[r], beats[l]
	}
	return trimWeakBeats(beats, local)
}

// localScore normalizes the envelope and smooths it with a Gaussian whose
// width follows the beat period.
func localScore(env []float64, std, period float64) []float64 {
	half := int(math.Round(period))
	kernel := make([]float64, 2*half+1)
	for k := range kernel {
		x := float64(k-half) * 32 / period
		kernel[k] = math.Exp(-0.5 * x * x)
	}

	n := len(env)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for k, w := range kernel {
			j := i + k - half
			if j >= 0 && j < n {
				s += w * env[j] / std
			}
		}
		out[i] = s
	}
	return out
}

// lastBeat picks the final local maximum of the cumulative score that is
// still strong relative to the median peak.
func lastBeat(cum []float64) int {
	n := len(cum)
	isMax := func(i int) bool {
		if i == 0 || n < 2 {
			return false
		}
		if i == n-1 {
			return cum[i] > cum[i-1]
		}
		return cum[i] > cum[i-1] && cum[i] >= cum[i+1]
	}

	var peaks []float64
	for i := range cum {
		if isMax(i) {
			peaks = append(peaks, cum[i])
		}
	}
	if len(peaks) == 0 {
		return -1
	}
	sort.Float64s(peaks)
	med := stat.Quantile(0.5, stat.Empirical, peaks, nil)

	for i := n - 1; i >= 0; i-- {
		if isMax(i) && 2*cum[i] > med {
			return i
		}
	}
	return -1
}

// trimWeakBeats drops leading and trailing beats whose local score falls
// below half the RMS score of all beats.
func trimWeakBeats(beats []int, local []float64) []int {
	if len(beats) == 0 {
		return beats
	}
	sq := 0.0
	for _, b := range beats {
		sq += local[b] * local[b]
	}
	thresh := 0.5 * math.Sqrt(sq/float64(len(beats)))

	start, end := 0, len(beats)
	for start < end && local[beats[start]] < thresh {
		start++
	}
	for end > start && local[beats[end-1]] < thresh {
		end--
	}
	return beats[start:end]
}
