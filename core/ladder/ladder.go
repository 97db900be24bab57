// Package ladder turns an ordered list of prize costs into cumulative unlock thresholds.
//
// A ladder is the list of `minutesRequired` values of a school's prizes, already sorted by
// (minutesRequired ASC, createdAt ASC). Rung i unlocks once a class has accumulated
// the sum of the costs of rungs 0..i.
package ladder

// FallbackStep is the segment size used when the ladder gives no usable segment.
const FallbackStep = 100

// Cumulative returns the prefix sums of costs.
func Cumulative(costs []int) []int {
	thresholds := make([]int, len(costs))
	var sum int
	for i, c := range costs {
		sum += c
		thresholds[i] = sum
	}
	return thresholds
}

// EarnedCount returns how many rungs are unlocked by `minutes`.
func EarnedCount(costs []int, minutes int) int {
	var n int
	for _, threshold := range Cumulative(costs) {
		if minutes >= threshold {
			n++
		}
	}
	return n
}

// Reached returns the indexes of the rungs unlocked by `minutes`, in ladder order.
func Reached(costs []int, minutes int) []int {
	idxs := make([]int, 0, len(costs))
	for i, threshold := range Cumulative(costs) {
		if minutes >= threshold {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// Progress is the position of a class inside its current ladder segment.
type Progress struct {
	CurrentSegmentMinutes int `json:"currentSegmentMinutes"`
	MinutesForNextPrize   int `json:"minutesForNextPrize"`
}

// SegmentProgress projects `minutes` onto the segment between the last earned rung and the next one.
// `earned` is clamped to [0, len(costs)].
// An empty ladder, or a zero-sized segment (which includes an exhausted ladder), falls back to FallbackStep sized segments.
func SegmentProgress(costs []int, minutes, earned int) Progress {
	n := len(costs)
	if n == 0 {
		return fallback(minutes)
	}
	if earned < 0 {
		earned = 0
	}
	if earned > n {
		earned = n
	}

	thresholds := Cumulative(costs)
	var prev int
	if earned > 0 {
		prev = thresholds[earned-1]
	}
	next := thresholds[n-1]
	if earned < n {
		next = thresholds[earned]
	}

	segment := next - prev
	if segment <= 0 {
		return fallback(minutes)
	}
	return Progress{
		CurrentSegmentMinutes: clamp(minutes-prev, 0, segment),
		MinutesForNextPrize:   segment,
	}
}

func fallback(minutes int) Progress {
	current := minutes % FallbackStep
	if current < 0 {
		current += FallbackStep
	}
	return Progress{CurrentSegmentMinutes: current, MinutesForNextPrize: FallbackStep}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
