package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedListener struct {
	stateChanges []State
	started      [][]SourceID
	complete     int
	ready        int
}

func (l *recordedListener) EngineStateChanged(state State) {
	l.stateChanges = append(l.stateChanges, state)
}
func (l *recordedListener) BufferingStarted(starved []SourceID) {
	l.started = append(l.started, starved)
}
func (l *recordedListener) BufferingComplete() { l.complete++ }
func (l *recordedListener) PlayersReady()      { l.ready++ }

func boolPtr(v bool) *bool { return &v }

func TestBridgeCachesPlayerFeedback(t *testing.T) {
	b := NewBridge()
	listener := &recordedListener{}
	b.SetListener(listener)

	b.handleEvent(playerEvent{
		Event:         "state",
		State:         &State{Status: StatusPlaying, Playhead: 12.5, Duration: 3600},
		ActuallyReady: boolPtr(true),
	})

	assert.Equal(t, StatusPlaying, b.State().Status)
	assert.Equal(t, 12.5, b.State().Playhead)
	assert.True(t, b.ActuallyReady())
	require.Len(t, listener.stateChanges, 1)

	b.handleEvent(playerEvent{Event: "ready", ActuallyReady: boolPtr(true)})
	assert.Equal(t, 1, listener.ready)
}

func TestBridgeKeepsReadinessWhenFieldOmitted(t *testing.T) {
	b := NewBridge()

	b.handleEvent(playerEvent{Event: "state", ActuallyReady: boolPtr(true)})
	require.True(t, b.ActuallyReady())

	// An event without the readiness field must not reset the cache.
	b.handleEvent(playerEvent{
		Event: "state",
		State: &State{Status: StatusPlaying, Playhead: 20},
	})
	assert.True(t, b.ActuallyReady())

	b.handleEvent(playerEvent{Event: "state", ActuallyReady: boolPtr(false)})
	assert.False(t, b.ActuallyReady())
}

func TestBridgeRelaysBufferingEvents(t *testing.T) {
	b := NewBridge()
	listener := &recordedListener{}
	b.SetListener(listener)

	b.handleEvent(playerEvent{
		Event:         "bufferingStarted",
		ActuallyReady: boolPtr(false),
		Starved:       []SourceID{SourceRemote},
	})
	b.handleEvent(playerEvent{Event: "bufferingComplete", ActuallyReady: boolPtr(true)})

	require.Len(t, listener.started, 1)
	assert.Equal(t, []SourceID{SourceRemote}, listener.started[0])
	assert.Equal(t, 1, listener.complete)
	assert.Equal(t, []SourceID{SourceRemote}, b.Starved())
}

func TestBridgeOperationsRequirePlayer(t *testing.T) {
	b := NewBridge()
	assert.ErrorIs(t, b.Play(), ErrNoPlayer)
	assert.ErrorIs(t, b.Seek(10), ErrNoPlayer)
}
