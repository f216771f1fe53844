// Package protocol defines the wire messages exchanged over the peer
// channel: a stream configuration announced once per connection, and the
// playback commands that keep both sides in lockstep.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/reelsync/reelsync/internal/vclock"
)

// EnvelopeType discriminates the two message kinds on the wire.
type EnvelopeType string

const (
	EnvelopeConfig  EnvelopeType = "config"
	EnvelopeCommand EnvelopeType = "command"
)

// Envelope is the outermost wire structure.
type Envelope struct {
	Type    EnvelopeType  `json:"type"`
	Config  *StreamConfig `json:"config,omitempty"`
	Command *Command      `json:"command,omitempty"`
}

// StreamConfig describes one peer's recording. The thumbnail sprite fields
// let the other side's scrubber preview this stream.
type StreamConfig struct {
	StreamID         string  `json:"streamId"`
	StartTimestamp   string  `json:"startTimestamp"`
	DurationHint     float64 `json:"durationHint,omitempty"`
	ThumbnailSprite  string  `json:"thumbnailSprite,omitempty"`
	ThumbnailSeconds float64 `json:"thumbnailSeconds,omitempty"`
}

// CommandType is the closed set of playback commands.
type CommandType string

const (
	CmdPlayIntent   CommandType = "playIntent"
	CmdPlayReady    CommandType = "playReady"
	CmdPlayNotReady CommandType = "playNotReady"
	CmdPauseIntent  CommandType = "pauseIntent"
	CmdSeekIntent   CommandType = "seekIntent"
	CmdSeekComplete CommandType = "seekComplete"
	CmdAudioChange  CommandType = "audioChange"
)

// Valid reports whether t is a known command type.
func (t CommandType) Valid() bool {
	switch t {
	case CmdPlayIntent, CmdPlayReady, CmdPlayNotReady, CmdPauseIntent,
		CmdSeekIntent, CmdSeekComplete, CmdAudioChange:
		return true
	}
	return false
}

// AudioTrack selects which side's audio is routed. Track names are
// peer-relative: my "local" is the other side's "remote".
type AudioTrack string

const (
	AudioLocal  AudioTrack = "local"
	AudioRemote AudioTrack = "remote"
)

// Inverted flips the peer-relative track name for the receiving side.
func (t AudioTrack) Inverted() AudioTrack {
	if t == AudioLocal {
		return AudioRemote
	}
	return AudioLocal
}

// Valid reports whether t is a known track name.
func (t AudioTrack) Valid() bool {
	return t == AudioLocal || t == AudioRemote
}

// Command is the unit of cross-peer coordination. Clock, SenderID and
// SendTimestamp are stamped by the connection at send time; received copies
// are treated as immutable.
type Command struct {
	Type           CommandType     `json:"type"`
	TargetPlayhead *float64        `json:"targetPlayhead,omitempty"`
	Track          AudioTrack      `json:"track,omitempty"`
	Clock          vclock.Snapshot `json:"clock,omitempty"`
	SenderID       string          `json:"senderId,omitempty"`
	SendTimestamp  time.Time       `json:"sendTimestamp,omitempty"`
}

// Playhead returns the target playhead if the command carries one.
func (c Command) Playhead() (float64, bool) {
	if c.TargetPlayhead == nil {
		return 0, false
	}
	return *c.TargetPlayhead, true
}

// PlayIntent announces that the sender wants to start playback at the given
// unified-timeline position.
func PlayIntent(playhead float64) Command {
	return Command{Type: CmdPlayIntent, TargetPlayhead: &playhead}
}

// PlayReady confirms the sender is buffered and starting playback.
func PlayReady(playhead float64) Command {
	return Command{Type: CmdPlayReady, TargetPlayhead: &playhead}
}

// PlayNotReady tells the peer the sender is still buffering.
func PlayNotReady() Command {
	return Command{Type: CmdPlayNotReady}
}

// PauseIntent announces an immediate pause at the given position.
func PauseIntent(playhead float64) Command {
	return Command{Type: CmdPauseIntent, TargetPlayhead: &playhead}
}

// SeekIntent announces a seek to the given unified-timeline position.
func SeekIntent(playhead float64) Command {
	return Command{Type: CmdSeekIntent, TargetPlayhead: &playhead}
}

// SeekComplete confirms the sender's playhead settled at the given position.
func SeekComplete(playhead float64) Command {
	return Command{Type: CmdSeekComplete, TargetPlayhead: &playhead}
}

// AudioChange announces an audio routing change, named from the sender's
// point of view.
func AudioChange(track AudioTrack) Command {
	return Command{Type: CmdAudioChange, Track: track}
}

// ConfigEnvelope wraps a stream configuration for the wire.
func ConfigEnvelope(cfg StreamConfig) Envelope {
	return Envelope{Type: EnvelopeConfig, Config: &cfg}
}

// CommandEnvelope wraps a command for the wire.
func CommandEnvelope(cmd Command) Envelope {
	return Envelope{Type: EnvelopeCommand, Command: &cmd}
}

// Validate rejects structurally malformed envelopes so that routing never
// has to deal with half-formed messages.
func (e Envelope) Validate() error {
	switch e.Type {
	case EnvelopeConfig:
		if e.Config == nil {
			return fmt.Errorf("config envelope without config payload")
		}
		return nil
	case EnvelopeCommand:
		if e.Command == nil {
			return fmt.Errorf("command envelope without command payload")
		}
		if !e.Command.Type.Valid() {
			return fmt.Errorf("unknown command type %q", e.Command.Type)
		}
		if e.Command.Type == CmdAudioChange && !e.Command.Track.Valid() {
			return fmt.Errorf("audioChange with unknown track %q", e.Command.Track)
		}
		return nil
	default:
		return fmt.Errorf("unknown envelope type %q", e.Type)
	}
}

// Encode marshals an envelope for the wire.
func Encode(e Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return json.Marshal(e)
}

// Decode unmarshals and validates an envelope received from the peer.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return e, nil
}
