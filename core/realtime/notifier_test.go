package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type emitted struct {
	room string
	name string
}

type recorder struct {
	mu     sync.Mutex
	events []emitted
}

func (r *recorder) Emit(room string, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, emitted{room: room, name: evt.Name})
}

func TestNotifier_routing(t *testing.T) {
	tests := []struct {
		name   string
		notify func(n *Notifier)
		want   []emitted
	}{
		{
			name: "minutes updated goes to class and school rooms",
			notify: func(n *Notifier) {
				n.ClassMinutesUpdated(ClassMinutesUpdated{ClassID: "c1", SchoolID: "s1", FitnessMinutes: 180})
			},
			want: []emitted{{room: "class:c1", name: EventClassMinutesUpdated}, {room: "school:s1", name: EventClassMinutesUpdated}},
		},
		{
			name:   "prize earned goes to school room only",
			notify: func(n *Notifier) { n.SchoolPrizeEarned(SchoolPrizeEarned{SchoolID: "s1", ClassID: "c1"}) },
			want:   []emitted{{room: "school:s1", name: EventSchoolPrizeEarned}},
		},
		{
			name:   "prize delivered",
			notify: func(n *Notifier) { n.SchoolPrizeDelivered(SchoolPrizeDelivered{SchoolID: "s1", EarnedPrizeID: "e1", Delivered: true}) },
			want:   []emitted{{room: "school:s1", name: EventSchoolPrizeDelivered}},
		},
		{
			name:   "prize created",
			notify: func(n *Notifier) { n.SchoolPrizeCreated(SchoolPrizeChanged{SchoolID: "s2", PrizeID: "p1"}) },
			want:   []emitted{{room: "school:s2", name: EventSchoolPrizeCreated}},
		},
		{
			name:   "prize updated",
			notify: func(n *Notifier) { n.SchoolPrizeUpdated(SchoolPrizeChanged{SchoolID: "s2", PrizeID: "p1"}) },
			want:   []emitted{{room: "school:s2", name: EventSchoolPrizeUpdated}},
		},
		{
			name:   "orphaned prize is not broadcast",
			notify: func(n *Notifier) { n.SchoolPrizeUpdated(SchoolPrizeChanged{PrizeID: "p1"}) },
			want:   nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(recorder)
			tt.notify(NewNotifier(rec))
			assert.Equal(t, tt.want, rec.events)
		})
	}
}

func TestNewNotifier_nilEmitter(t *testing.T) {
	n := NewNotifier(nil)
	assert.NotPanics(t, func() { n.ClassMinutesUpdated(ClassMinutesUpdated{ClassID: "c1", SchoolID: "s1"}) })
}

func TestRooms(t *testing.T) {
	assert.Equal(t, "class:abc", ClassRoom("abc"))
	assert.Equal(t, "school:xyz", SchoolRoom("xyz"))
}
