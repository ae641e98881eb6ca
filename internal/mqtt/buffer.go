package mqtt

// outbound is a serialized message waiting for the broker.
type outbound struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// backlog holds messages published while disconnected. When full, the
// oldest message is discarded. Not safe for concurrent use.
type backlog struct {
	items   []outbound
	start   int
	n       int
	dropped int
}

func newBacklog(capacity int) *backlog {
	if capacity < 1 {
		capacity = 1
	}
	return &backlog{items: make([]outbound, capacity)}
}

func (b *backlog) add(m outbound) {
	if b.n == len(b.items) {
		b.items[b.start] = m
		b.start = (b.start + 1) % len(b.items)
		b.dropped++
		return
	}
	b.items[(b.start+b.n)%len(b.items)] = m
	b.n++
}

// take empties the backlog, returning messages oldest first and how many
// were discarded since the last take.
func (b *backlog) take() ([]outbound, int) {
	dropped := b.dropped
	if b.n == 0 {
		b.dropped = 0
		return nil, dropped
	}
	out := make([]outbound, 0, b.n)
	for i := 0; i < b.n; i++ {
		out = append(out, b.items[(b.start+i)%len(b.items)])
	}
	b.start, b.n, b.dropped = 0, 0, 0
	return out, dropped
}

func (b *backlog) size() int {
	return b.n
}
