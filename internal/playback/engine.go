// Package playback defines the contract between the synchronization engine
// and the player that actually renders video, plus the bridge that carries
// that contract to a browser-hosted player over a local WebSocket.
package playback

import (
	"github.com/reelsync/reelsync/internal/protocol"
)

// Status is the coarse playback state reported by the engine.
type Status string

const (
	StatusPaused  Status = "paused"
	StatusReady   Status = "ready"
	StatusPlaying Status = "playing"
)

// SourceID names one of the two media sources the engine plays side by side.
type SourceID string

const (
	SourceLocal  SourceID = "local"
	SourceRemote SourceID = "remote"
)

// State is a snapshot of the engine's playback position.
type State struct {
	Status   Status  `json:"status"`
	Playhead float64 `json:"playhead"`
	Duration float64 `json:"duration"`
}

// Engine drives the player. The synchronization engine is the only caller;
// the UI must route every action through an intent so that coordination
// state and actual playback never diverge.
type Engine interface {
	Play() error
	Pause() error
	Seek(position float64) error
	SwitchAudio(track protocol.AudioTrack) error

	// State returns the last known playback state.
	State() State
	// ActuallyReady reports true readiness, verified against buffered
	// ranges rather than a coarse readiness flag.
	ActuallyReady() bool
	// Starved names the sources currently out of buffered data.
	Starved() []SourceID
}

// Listener receives engine feedback. Implementations must tolerate being
// called from the engine's own goroutine.
type Listener interface {
	// EngineStateChanged fires on every status transition.
	EngineStateChanged(state State)
	// BufferingStarted fires when one or both sources run out of data.
	BufferingStarted(starved []SourceID)
	// BufferingComplete fires once all sources have recovered.
	BufferingComplete()
	// PlayersReady fires once both media sources report loaded metadata.
	PlayersReady()
}
