package ladder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCumulative(t *testing.T) {
	assert.Equal(t, []int{}, Cumulative(nil))
	assert.Equal(t, []int{100, 300, 350}, Cumulative([]int{100, 200, 50}))
	assert.Equal(t, []int{0, 100}, Cumulative([]int{0, 100}))
}

func TestEarnedCount(t *testing.T) {
	costs := []int{100, 100}

	tests := []struct {
		name    string
		costs   []int
		minutes int
		want    int
	}{
		{name: "empty ladder", minutes: 500, want: 0},
		{name: "below first rung", costs: costs, minutes: 99, want: 0},
		{name: "exactly first rung", costs: costs, minutes: 100, want: 1},
		{name: "between rungs", costs: costs, minutes: 150, want: 1},
		{name: "exactly second rung", costs: costs, minutes: 200, want: 2},
		{name: "past the ladder", costs: costs, minutes: 1000, want: 2},
		{name: "free rung", costs: []int{0, 100}, minutes: 0, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EarnedCount(tt.costs, tt.minutes))
		})
	}
}

func TestEarnedCount_sequentialAdds(t *testing.T) {
	costs := []int{100, 100}
	var minutes, earned int
	var crossed []int
	for _, delta := range []int{50, 50, 50, 50} {
		minutes += delta
		n := EarnedCount(costs, minutes)
		crossed = append(crossed, n-earned)
		earned = n
	}
	assert.Equal(t, 200, minutes)
	assert.Equal(t, 2, earned)
	assert.Equal(t, []int{0, 1, 0, 1}, crossed)
}

func TestReached(t *testing.T) {
	assert.Equal(t, []int{}, Reached([]int{100, 200}, 50))
	assert.Equal(t, []int{0}, Reached([]int{100, 200}, 299))
	assert.Equal(t, []int{0, 1}, Reached([]int{100, 200}, 300))
}

func TestSegmentProgress(t *testing.T) {
	tests := []struct {
		name    string
		costs   []int
		minutes int
		earned  int
		want    Progress
	}{
		{name: "empty ladder", minutes: 250, want: Progress{CurrentSegmentMinutes: 50, MinutesForNextPrize: 100}},
		{name: "first segment", costs: []int{100, 200}, minutes: 40, earned: 0, want: Progress{CurrentSegmentMinutes: 40, MinutesForNextPrize: 100}},
		{name: "second segment", costs: []int{100, 200}, minutes: 150, earned: 1, want: Progress{CurrentSegmentMinutes: 50, MinutesForNextPrize: 200}},
		{name: "ladder exhausted", costs: []int{100, 200}, minutes: 450, earned: 2, want: Progress{CurrentSegmentMinutes: 50, MinutesForNextPrize: 100}},
		{name: "single rung exhausted", costs: []int{100}, minutes: 130, earned: 1, want: Progress{CurrentSegmentMinutes: 30, MinutesForNextPrize: 100}},
		{name: "zero sized last segment", costs: []int{100, 0}, minutes: 130, earned: 2, want: Progress{CurrentSegmentMinutes: 30, MinutesForNextPrize: 100}},
		{name: "zero cost rungs only", costs: []int{0}, minutes: 30, earned: 1, want: Progress{CurrentSegmentMinutes: 30, MinutesForNextPrize: 100}},
		{name: "earned above ladder size", costs: []int{100, 200}, minutes: 350, earned: 7, want: Progress{CurrentSegmentMinutes: 50, MinutesForNextPrize: 100}},
		{name: "earned count lagging behind minutes", costs: []int{100, 200}, minutes: 350, earned: 1, want: Progress{CurrentSegmentMinutes: 200, MinutesForNextPrize: 200}},
		{name: "negative earned", costs: []int{100, 200}, minutes: 40, earned: -1, want: Progress{CurrentSegmentMinutes: 40, MinutesForNextPrize: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SegmentProgress(tt.costs, tt.minutes, tt.earned))
		})
	}
}
