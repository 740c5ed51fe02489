package mqtt

import (
	"github.com/sweeney/flight-monitor/internal/logic"
)

// Published is one message recorded by FakePublisher.
type Published struct {
	Topic   string // suffix, e.g. TopicWind
	Payload []byte
}

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Actions contains all mode requests and notifications that were published.
	Actions []logic.Action

	// Sequences, Prearms and Winds contain the telemetry values that were published.
	Sequences []logic.SequenceNumbers
	Prearms   []bool
	Winds     []logic.WindState

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// Messages contains every payload in publish order.
	Messages []Published

	// PublishError, if set, will be returned by every telemetry publish.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

func (f *FakePublisher) record(topic string, payload []byte, err error) error {
	if err != nil {
		return err
	}
	f.Messages = append(f.Messages, Published{Topic: topic, Payload: payload})
	return nil
}

// PublishAction records the action.
func (f *FakePublisher) PublishAction(action logic.Action) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	topic, payload, err := FormatAction(action)
	if err != nil {
		return err
	}
	f.Actions = append(f.Actions, action)
	return f.record(topic, payload, nil)
}

// PublishSequence records the counters.
func (f *FakePublisher) PublishSequence(seq logic.SequenceNumbers) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Sequences = append(f.Sequences, seq)
	payload, err := FormatSequence(seq)
	return f.record(TopicSequence, payload, err)
}

// PublishPrearm records the pre-arm flag.
func (f *FakePublisher) PublishPrearm(ok bool) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Prearms = append(f.Prearms, ok)
	payload, err := FormatPrearm(ok)
	return f.record(TopicPrearm, payload, err)
}

// PublishWind records the wind estimate.
func (f *FakePublisher) PublishWind(w logic.WindState) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Winds = append(f.Winds, w)
	payload, err := FormatWind(w)
	return f.record(TopicWind, payload, err)
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}
	f.SystemEvents = append(f.SystemEvents, event)
	payload, err := FormatSystemPayload(event)
	return f.record(TopicSystem, payload, err)
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Reset clears recorded messages and injected errors.
func (f *FakePublisher) Reset() {
	*f = FakePublisher{}
}

// FakeSource replays scripted vehicle state samples, one per Latest call.
// After the samples are exhausted the last one is repeated. With no samples
// Latest reports that nothing has arrived.
type FakeSource struct {
	Samples []logic.VehicleState

	// Commands maps a tick index (0-based count of Latest calls) to the
	// commands delivered on that tick.
	Commands map[int][]Command

	call int
}

// NewFakeSource creates a FakeSource that replays the given samples.
func NewFakeSource(samples []logic.VehicleState) *FakeSource {
	return &FakeSource{Samples: samples, call: -1}
}

// Latest advances to the next sample.
func (f *FakeSource) Latest() (logic.VehicleState, bool) {
	f.call++
	if len(f.Samples) == 0 {
		return logic.VehicleState{}, false
	}
	if f.call < len(f.Samples) {
		return f.Samples[f.call], true
	}
	return f.Samples[len(f.Samples)-1], true
}

// DrainCommands returns the commands scripted for the current tick.
func (f *FakeSource) DrainCommands() []Command {
	cmds := f.Commands[f.call]
	delete(f.Commands, f.call)
	return cmds
}
