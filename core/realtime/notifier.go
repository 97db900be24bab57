package realtime

// Emitter delivers an event to every connection joined to room.
// Delivery is best-effort: implementations never report failures to the caller.
type Emitter interface {
	Emit(room string, evt Event)
}

// NopEmitter drops every event. It is used when real-time delivery is disabled.
type NopEmitter struct{}

func (NopEmitter) Emit(string, Event) {}

// Notifier routes typed payloads to their rooms.
type Notifier struct {
	emitter Emitter
}

func NewNotifier(emitter Emitter) *Notifier {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &Notifier{emitter: emitter}
}

// ClassMinutesUpdated goes to the class room and to the school room.
func (n *Notifier) ClassMinutesUpdated(p ClassMinutesUpdated) {
	evt := Event{Name: EventClassMinutesUpdated, Payload: p}
	n.emitter.Emit(ClassRoom(p.ClassID), evt)
	if p.SchoolID != "" {
		n.emitter.Emit(SchoolRoom(p.SchoolID), evt)
	}
}

func (n *Notifier) SchoolPrizeEarned(p SchoolPrizeEarned) {
	n.toSchool(p.SchoolID, Event{Name: EventSchoolPrizeEarned, Payload: p})
}

func (n *Notifier) SchoolPrizeDelivered(p SchoolPrizeDelivered) {
	n.toSchool(p.SchoolID, Event{Name: EventSchoolPrizeDelivered, Payload: p})
}

func (n *Notifier) SchoolPrizeCreated(p SchoolPrizeChanged) {
	n.toSchool(p.SchoolID, Event{Name: EventSchoolPrizeCreated, Payload: p})
}

func (n *Notifier) SchoolPrizeUpdated(p SchoolPrizeChanged) {
	n.toSchool(p.SchoolID, Event{Name: EventSchoolPrizeUpdated, Payload: p})
}

// orphaned records have no school room
func (n *Notifier) toSchool(schoolID string, evt Event) {
	if schoolID == "" {
		return
	}
	n.emitter.Emit(SchoolRoom(schoolID), evt)
}
