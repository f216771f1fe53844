package coordinator

import (
	"github.com/reelsync/reelsync/internal/protocol"
	"github.com/reelsync/reelsync/internal/vclock"
)

// IntentType names the coordination operation currently being resolved.
type IntentType string

const (
	IntentNone        IntentType = "none"
	IntentPlay        IntentType = "play"
	IntentPause       IntentType = "pause"
	IntentSeek        IntentType = "seek"
	IntentAudioChange IntentType = "audioChange"
)

// Initiator records which side started the intent.
type Initiator string

const (
	InitiatorLocal  Initiator = "local"
	InitiatorRemote Initiator = "remote"
)

// IntentStatus is the progress of the in-flight intent.
type IntentStatus string

const (
	StatusIdle         IntentStatus = "idle"
	StatusCoordinating IntentStatus = "coordinating"
	StatusWaiting      IntentStatus = "waiting"
	StatusBuffering    IntentStatus = "buffering"
	StatusComplete     IntentStatus = "complete"
)

// Intent is the single "what is happening right now" record. At most one
// non-idle intent exists at a time; starting a new one unconditionally
// replaces the old one, with no queueing. The generation counter ties
// timers to the intent they were armed for.
type Intent struct {
	Type           IntentType
	Initiator      Initiator
	TargetPlayhead float64
	Track          protocol.AudioTrack
	ClockStamp     vclock.Snapshot
	Status         IntentStatus

	generation uint64
}

func idleIntent(generation uint64) Intent {
	return Intent{
		Type:       IntentNone,
		Status:     StatusIdle,
		generation: generation,
	}
}

// SyncState is the UI-facing playback state, derived deterministically from
// the intent.
type SyncState string

const (
	StatePaused      SyncState = "paused"
	StatePlaying     SyncState = "playing"
	StateBuffering   SyncState = "buffering"
	StatePendingPlay SyncState = "pendingPlay"
	StatePendingSeek SyncState = "pendingSeek"
)

// deriveSyncState implements the Intent.Type x Intent.Status table.
func deriveSyncState(intent Intent) SyncState {
	if intent.Status == StatusBuffering {
		return StateBuffering
	}

	switch intent.Type {
	case IntentPlay:
		switch intent.Status {
		case StatusCoordinating, StatusWaiting:
			return StatePendingPlay
		default:
			return StatePlaying
		}
	case IntentSeek:
		switch intent.Status {
		case StatusCoordinating, StatusWaiting:
			return StatePendingSeek
		default:
			return StatePaused
		}
	default:
		// none, pause and completed audio changes read as paused.
		return StatePaused
	}
}
