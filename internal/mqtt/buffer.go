package mqtt

// queuedMsg is a serialized message waiting for the broker connection to return.
type queuedMsg struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// ringBuffer is a fixed-capacity FIFO of queued messages. When full the
// oldest message is overwritten. Not safe for concurrent use.
type ringBuffer struct {
	buf     []queuedMsg
	head    int // next write position
	count   int
	dropped int // messages overwritten since the last drain
}

func newRingBuffer(capacity int) *ringBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ringBuffer{buf: make([]queuedMsg, capacity)}
}

// push appends msg and reports whether an older message was dropped to make room.
func (r *ringBuffer) push(msg queuedMsg) bool {
	n := len(r.buf)
	r.buf[r.head] = msg
	r.head = (r.head + 1) % n
	if r.count == n {
		r.dropped++
		return true
	}
	r.count++
	return false
}

// drain returns queued messages oldest first, with the number dropped since
// the previous drain, and empties the buffer.
func (r *ringBuffer) drain() ([]queuedMsg, int) {
	dropped := r.dropped
	r.dropped = 0
	if r.count == 0 {
		return nil, dropped
	}

	n := len(r.buf)
	out := make([]queuedMsg, r.count)
	start := (r.head - r.count + n) % n
	for i := range out {
		out[i] = r.buf[(start+i)%n]
		r.buf[(start+i)%n] = queuedMsg{}
	}
	r.count = 0
	r.head = 0
	return out, dropped
}

func (r *ringBuffer) len() int {
	return r.count
}
