package gpio

// FakeWriter is a test double that records written light states.
type FakeWriter struct {
	// Writes contains every (red, green) pair written, in order.
	Writes []Levels

	// Closed tracks if Close was called
	Closed bool

	// WriteError, if set, will be returned by Write()
	WriteError error
}

// Levels is a single indicator write (logical form, true = lit).
type Levels struct {
	Red   bool
	Green bool
}

// NewFakeWriter creates a FakeWriter.
func NewFakeWriter() *FakeWriter {
	return &FakeWriter{}
}

// Write records the levels.
func (f *FakeWriter) Write(red, green bool) error {
	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, Levels{Red: red, Green: green})
	return nil
}

// Last returns the most recent write and whether any write happened.
func (f *FakeWriter) Last() (Levels, bool) {
	if len(f.Writes) == 0 {
		return Levels{}, false
	}
	return f.Writes[len(f.Writes)-1], true
}

// Close marks the writer as closed.
func (f *FakeWriter) Close() error {
	f.Closed = true
	return nil
}

// Reset clears recorded writes.
func (f *FakeWriter) Reset() {
	f.Writes = nil
	f.Closed = false
	f.WriteError = nil
}
