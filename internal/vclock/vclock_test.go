package vclock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a    Snapshot
		b    Snapshot
		want Ordering
	}{
		{
			name: "strict subset is before",
			a:    Snapshot{"p1": 1},
			b:    Snapshot{"p1": 1, "p2": 1},
			want: Before,
		},
		{
			name: "strict superset is after",
			a:    Snapshot{"p1": 2, "p2": 1},
			b:    Snapshot{"p1": 1, "p2": 1},
			want: After,
		},
		{
			name: "divergent counters are concurrent",
			a:    Snapshot{"p1": 2, "p2": 0},
			b:    Snapshot{"p1": 0, "p2": 2},
			want: Concurrent,
		},
		{
			name: "equal clocks are concurrent",
			a:    Snapshot{"p1": 1},
			b:    Snapshot{"p1": 1},
			want: Concurrent,
		},
		{
			name: "missing key counts as zero",
			a:    Snapshot{},
			b:    Snapshot{"p1": 1},
			want: Before,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.a, tt.b))
		})
	}
}

func TestTickAndMerge(t *testing.T) {
	c := New("alice")

	snap := c.Tick()
	assert.Equal(t, Snapshot{"alice": 1}, snap)

	c.Merge(Snapshot{"alice": 1, "bob": 3})
	assert.Equal(t, Snapshot{"alice": 1, "bob": 3}, c.Snapshot())

	// Merge never rolls a counter back.
	c.Merge(Snapshot{"bob": 1})
	assert.Equal(t, uint64(3), c.Snapshot()["bob"])

	// Tick only advances the owner's counter.
	snap = c.Tick()
	assert.Equal(t, Snapshot{"alice": 2, "bob": 3}, snap)
}

func TestTickReturnsCopy(t *testing.T) {
	c := New("alice")
	snap := c.Tick()
	snap["alice"] = 99
	assert.Equal(t, uint64(1), c.Snapshot()["alice"])
}

func TestShouldAccept(t *testing.T) {
	assert.True(t, ShouldAccept(Snapshot{"a": 1}, nil, "a", ""), "no prior applied clock accepts anything")

	last := Snapshot{"alice": 1}
	assert.True(t, ShouldAccept(Snapshot{"alice": 1, "bob": 1}, last, "bob", "alice"), "causally newer wins")
	assert.False(t, ShouldAccept(Snapshot{}, last, "bob", "alice"), "causally older is rejected")
}

func TestConcurrentTieBreakDeterminism(t *testing.T) {
	// Two commands issued concurrently, one per peer.
	aliceCmd := Snapshot{"alice": 1}
	bobCmd := Snapshot{"bob": 1}

	// Arrival order 1: alice's command applied first, bob's arrives.
	bobWinsAtAlice := ShouldAccept(bobCmd, aliceCmd, "bob", "alice")
	// Arrival order 2: bob's command applied first, alice's arrives.
	aliceWinsAtBob := ShouldAccept(aliceCmd, bobCmd, "alice", "bob")

	// Exactly one side yields; "alice" sorts lower so alice's command wins
	// on both peers.
	assert.False(t, bobWinsAtAlice)
	assert.True(t, aliceWinsAtBob)
}
