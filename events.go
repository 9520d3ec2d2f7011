package tcam

import (
	"github.com/kelindar/event"
)

// Event type identifiers for kelindar/event.
const (
	TypePowerChanged uint32 = iota + 1
	TypeStreamChanged
	TypeModeChanged
	TypeFrameRateChanged
)

// PowerEvent is published whenever the power reference count changes.
type PowerEvent struct {
	Device string
	Action PowerAction
	Count  int
}

func (e PowerEvent) Type() uint32 { return TypePowerChanged }

// StreamEvent is published when streaming starts or stops.
type StreamEvent struct {
	Device    string
	Streaming bool
}

func (e StreamEvent) Type() uint32 { return TypeStreamChanged }

// ModeEvent is published when the active mode changes.
type ModeEvent struct {
	Device string
	Old    Mode
	New    Mode
}

func (e ModeEvent) Type() uint32 { return TypeModeChanged }

// FrameRateEvent is published when a new frame interval is committed.
type FrameRateEvent struct {
	Device    string
	Rate      FrameRate
	Interval  Fraction
	PixelRate uint64
}

func (e FrameRateEvent) Type() uint32 { return TypeFrameRateChanged }

// Events fans device transitions out to subscribers. Delivery is asynchronous.
type Events struct {
	dispatcher *event.Dispatcher
}

func NewEvents() *Events {
	return &Events{dispatcher: event.NewDispatcher()}
}

// Subscribe registers handler for the event type it accepts and returns the
// unsubscribe function.
// Usage: unsub := tcam.Subscribe(events, func(e tcam.StreamEvent) { ... })
func Subscribe[T event.Event](e *Events, handler func(T)) func() {
	return event.Subscribe(e.dispatcher, handler)
}

func publish[T event.Event](e *Events, ev T) {
	if e == nil {
		return
	}
	event.Publish(e.dispatcher, ev)
}
