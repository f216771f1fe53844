package coordinator

import (
	"sync"

	"github.com/reelsync/reelsync/internal/timeline"
)

// publishedState is the cross-goroutine view of the coordinator. The Run
// goroutine writes, the control surface reads.
type publishedState struct {
	mu        sync.RWMutex
	state     SyncState
	connected bool
	role      string
	tl        *timeline.Unified
}

func (p *publishedState) set(state SyncState, connected bool, role string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.connected = connected
	p.role = role
}

// update stores the new view and reports whether the sync state changed.
func (p *publishedState) update(state SyncState, connected bool, role string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	changed := p.state != state
	p.state = state
	p.connected = connected
	p.role = role
	return changed
}

func (p *publishedState) get() (SyncState, bool, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state, p.connected, p.role
}

func (p *publishedState) syncState() SyncState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *publishedState) setTimeline(tl *timeline.Unified) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tl = tl
}

func (p *publishedState) timeline() *timeline.Unified {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tl
}
