package logic

import "math"

// FlightAltitudeM is the altitude a vehicle must exceed while armed for the
// arm/disarm cycle to count as a flight.
const FlightAltitudeM = 5.0

// SequenceTracker maintains the disarm and flight sequence numbers.
// Counter values live in the ParamStore and are re-read on every evaluation,
// so an external reset (e.g. a ground station parameter write) is honoured.
type SequenceTracker struct {
	store       ParamStore
	disarmLatch bool // armed since the last disarm edge
	flightLatch bool // armed and above FlightAltitudeM since the last disarm edge
	altitude    float64
}

// NewSequenceTracker creates a tracker backed by the given parameter store.
func NewSequenceTracker(store ParamStore) *SequenceTracker {
	return &SequenceTracker{store: store}
}

// Evaluate advances both counters by one tick and returns the counter values
// after this tick, plus which counters were incremented.
func (s *SequenceTracker) Evaluate(armed bool, altitudeM float64) (SequenceNumbers, SequenceChange) {
	seq := s.Counters()
	var change SequenceChange

	if armed {
		s.disarmLatch = true
	}
	if !armed && s.disarmLatch {
		s.disarmLatch = false
		seq.Disarm, change.Disarm = increment(seq.Disarm)
	}

	// Altitude is sampled every tick regardless of arm state.
	s.altitude = altitudeM
	if armed && s.altitude > FlightAltitudeM {
		s.flightLatch = true
	}
	if !armed && s.flightLatch {
		s.flightLatch = false
		seq.Flight, change.Flight = increment(seq.Flight)
	}

	s.store.SetInt16IfChanged(ParamDisarmSeqNum, seq.Disarm)
	s.store.SetInt16IfChanged(ParamFlightSeqNum, seq.Flight)
	return seq, change
}

// increment adds one, saturating at math.MaxInt16. It reports whether the
// value changed.
func increment(v int16) (int16, bool) {
	if v >= math.MaxInt16 {
		return v, false
	}
	return v + 1, true
}

// Counters returns the persisted counter values.
func (s *SequenceTracker) Counters() SequenceNumbers {
	return SequenceNumbers{
		Disarm: s.store.Int16(ParamDisarmSeqNum),
		Flight: s.store.Int16(ParamFlightSeqNum),
	}
}

// Latched reports the current latch states (disarm, flight).
func (s *SequenceTracker) Latched() (disarm, flight bool) {
	return s.disarmLatch, s.flightLatch
}

// SequenceChange reports which counters an evaluation incremented.
type SequenceChange struct {
	Disarm bool
	Flight bool
}

// Any reports whether either counter changed.
func (c SequenceChange) Any() bool {
	return c.Disarm || c.Flight
}
