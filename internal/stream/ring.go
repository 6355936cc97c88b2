package stream

import "sync/atomic"

// ring is a fixed-capacity single-producer single-consumer byte queue. The
// producer owns tail, the consumer owns head; both are monotonically
// increasing operation counters, so used space is always tail−head and no
// index ever wraps. In the pipeline both ends run on one goroutine and
// simply alternate, but the atomics keep the pair safe if a caller splits
// them across two.
type ring struct {
	buf  []byte
	head atomic.Uint64
	tail atomic.Uint64
}

// NewRing creates a ring of the given byte capacity and returns its two
// endpoints. Capacity must be positive.
func NewRing(capacity int) (*Producer, *Consumer) {
	if capacity <= 0 {
		panic("stream: ring capacity must be positive")
	}
	r := &ring{buf: make([]byte, capacity)}
	return &Producer{r: r}, &Consumer{r: r}
}

// Producer is the write end of a ring.
type Producer struct {
	r *ring
}

// Capacity returns the total byte capacity.
func (p *Producer) Capacity() int { return len(p.r.buf) }

// Free returns the number of bytes that can be written right now.
func (p *Producer) Free() int {
	return len(p.r.buf) - int(p.r.tail.Load()-p.r.head.Load())
}

// TryWrite appends b whole or not at all. It reports whether the write
// happened; false means the free space was smaller than len(b) and the ring
// is untouched.
func (p *Producer) TryWrite(b []byte) bool {
	if len(b) == 0 {
		return true
	}
	tail := p.r.tail.Load()
	free := len(p.r.buf) - int(tail-p.r.head.Load())
	if free < len(b) {
		return false
	}

	at := int(tail % uint64(len(p.r.buf)))
	n := copy(p.r.buf[at:], b)
	if n < len(b) {
		copy(p.r.buf, b[n:])
	}
	p.r.tail.Store(tail + uint64(len(b)))
	return true
}

// Consumer is the read end of a ring.
type Consumer struct {
	r *ring
}

// Capacity returns the total byte capacity.
func (c *Consumer) Capacity() int { return len(c.r.buf) }

// Buffered returns the number of bytes available to read right now.
func (c *Consumer) Buffered() int {
	return int(c.r.tail.Load() - c.r.head.Load())
}

// Read copies up to len(dst) buffered bytes into dst and consumes them,
// returning the number copied. It never blocks; an empty ring reads zero.
func (c *Consumer) Read(dst []byte) int {
	head := c.r.head.Load()
	avail := int(c.r.tail.Load() - head)
	if avail == 0 || len(dst) == 0 {
		return 0
	}
	n := min(len(dst), avail)

	at := int(head % uint64(len(c.r.buf)))
	copied := copy(dst[:n], c.r.buf[at:])
	if copied < n {
		copy(dst[copied:n], c.r.buf)
	}
	c.r.head.Store(head + uint64(n))
	return n
}
