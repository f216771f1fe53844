// Package vclock provides the vector-clock ordering used to reconcile
// commands from two peers without a shared wall clock.
package vclock

// Snapshot is an immutable copy of a vector clock: peer identity to counter.
type Snapshot map[string]uint64

// Ordering is the result of comparing two snapshots under the vector-clock
// partial order.
type Ordering int

const (
	Before Ordering = iota
	After
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// Clock is one peer's vector clock. A peer only ever increments its own
// counter; remote knowledge arrives through Merge. Owned by a single
// connection instance and not safe for concurrent use.
type Clock struct {
	self     string
	counters Snapshot
}

// New creates an empty clock owned by the given peer identity.
func New(self string) *Clock {
	return &Clock{
		self:     self,
		counters: make(Snapshot),
	}
}

// Tick increments the owner's counter and returns a snapshot of the full
// vector for stamping an outgoing command.
func (c *Clock) Tick() Snapshot {
	c.counters[c.self]++
	return c.Snapshot()
}

// Merge folds an incoming snapshot into the local clock, taking the
// pointwise maximum of the counters.
func (c *Clock) Merge(in Snapshot) {
	for id, counter := range in {
		if counter > c.counters[id] {
			c.counters[id] = counter
		}
	}
}

// Snapshot returns a copy of the current vector.
func (c *Clock) Snapshot() Snapshot {
	out := make(Snapshot, len(c.counters))
	for id, counter := range c.counters {
		out[id] = counter
	}
	return out
}

// Compare orders two snapshots over the union of their keys. a is Before b
// iff every counter in a is <= the counter in b with at least one strictly
// smaller; After is symmetric; anything else, including equality, is
// Concurrent.
func Compare(a, b Snapshot) Ordering {
	var aBehind, bBehind bool
	for id := range union(a, b) {
		switch {
		case a[id] < b[id]:
			aBehind = true
		case b[id] < a[id]:
			bBehind = true
		}
	}
	switch {
	case aBehind && !bBehind:
		return Before
	case bBehind && !aBehind:
		return After
	default:
		return Concurrent
	}
}

// ShouldAccept decides whether an incoming command supersedes the last
// applied one. A causally newer command always wins; a causally older one is
// always rejected. Concurrent commands are tie-broken by sender identity:
// the lexicographically smaller id wins, so both peers converge on the same
// winner regardless of arrival order.
func ShouldAccept(incoming, lastApplied Snapshot, incomingSender, lastSender string) bool {
	if len(lastApplied) == 0 {
		return true
	}
	switch Compare(incoming, lastApplied) {
	case After:
		return true
	case Before:
		return false
	default:
		return incomingSender < lastSender
	}
}

func union(a, b Snapshot) map[string]struct{} {
	keys := make(map[string]struct{}, len(a)+len(b))
	for id := range a {
		keys[id] = struct{}{}
	}
	for id := range b {
		keys[id] = struct{}{}
	}
	return keys
}
