// Package coordinator owns the synchronization state machine. It receives
// local UI intents, causally-accepted remote commands and playback engine
// feedback, drives the engine, and emits outbound commands plus a derived
// UI-facing sync state.
package coordinator

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/reelsync/reelsync/internal/peer"
	"github.com/reelsync/reelsync/internal/playback"
	"github.com/reelsync/reelsync/internal/protocol"
	"github.com/reelsync/reelsync/internal/timeline"
)

// ErrPlayReadyTimeout means the peer never reached readiness within the
// bound; the pending intent was abandoned.
var ErrPlayReadyTimeout = errors.New("peer never became ready to play")

// Config holds the coordinator's tunables.
type Config struct {
	// DriftThreshold is the playhead discrepancy (seconds) beyond which a
	// remote pause triggers a corrective re-seek.
	DriftThreshold float64
	// SeekTolerance is how close (seconds) a settled playhead must be to a
	// seek target to count as reached.
	SeekTolerance float64
	// PlayReadyTimeout bounds how long a pending intent waits on peer
	// readiness before failing back to idle.
	PlayReadyTimeout time.Duration
}

// DefaultConfig returns the reference tunables.
func DefaultConfig() Config {
	return Config{
		DriftThreshold:   0.5,
		SeekTolerance:    0.1,
		PlayReadyTimeout: 5 * time.Minute,
	}
}

// Status is a read-only snapshot for the control surface.
type Status struct {
	State            SyncState `json:"state"`
	Playhead         float64   `json:"playhead"`
	Connected        bool      `json:"connected"`
	Role             string    `json:"role,omitempty"`
	TimelineDuration float64   `json:"timelineDuration,omitempty"`
	FirstSharedFrame float64   `json:"firstSharedFrame,omitempty"`
}

// event is the closed set of inputs the state machine reacts to. All
// mutation happens on the Run goroutine, one event to completion at a time.
type event interface{ eventName() string }

type localPlayEvent struct{}
type localPauseEvent struct{}
type localSeekEvent struct{ target float64 }
type localAudioEvent struct{ track protocol.AudioTrack }
type remoteCommandEvent struct{ cmd protocol.Command }
type engineStateEvent struct{ state playback.State }
type bufferingStartedEvent struct{ starved []playback.SourceID }
type bufferingCompleteEvent struct{}
type playersReadyEvent struct{}
type sessionOpenedEvent struct {
	sender peer.Sender
	role   peer.Role
}
type remoteConfigEvent struct{ cfg protocol.StreamConfig }
type sessionClosedEvent struct{ err error }
type readyTimeoutEvent struct{ generation uint64 }

func (localPlayEvent) eventName() string         { return "localPlay" }
func (localPauseEvent) eventName() string        { return "localPause" }
func (localSeekEvent) eventName() string         { return "localSeek" }
func (localAudioEvent) eventName() string        { return "localAudio" }
func (remoteCommandEvent) eventName() string     { return "remoteCommand" }
func (engineStateEvent) eventName() string       { return "engineState" }
func (bufferingStartedEvent) eventName() string  { return "bufferingStarted" }
func (bufferingCompleteEvent) eventName() string { return "bufferingComplete" }
func (playersReadyEvent) eventName() string      { return "playersReady" }
func (sessionOpenedEvent) eventName() string     { return "sessionOpened" }
func (remoteConfigEvent) eventName() string      { return "remoteConfig" }
func (sessionClosedEvent) eventName() string     { return "sessionClosed" }
func (readyTimeoutEvent) eventName() string      { return "readyTimeout" }

// Coordinator is the synchronization engine. It is the only writer of the
// Intent and the only caller of the playback engine.
type Coordinator struct {
	engine playback.Engine
	config Config
	clock  clockwork.Clock

	localDesc timeline.Descriptor

	events chan event

	// State below is owned by the Run goroutine.
	intent               Intent
	generation           uint64
	sender               peer.Sender
	role                 peer.Role
	timeline             *timeline.Unified
	remoteCfg            *protocol.StreamConfig
	enginesReady         bool
	deferredRemotePlay   bool
	stateBeforeBuffering SyncState
	readyTimer           clockwork.Timer

	// published is the snapshot readable from other goroutines.
	published publishedState

	// OnSyncState, when set before Run, is invoked on every derived state
	// change.
	OnSyncState func(state SyncState)
}

// New creates a coordinator for one session.
func New(engine playback.Engine, localDesc timeline.Descriptor, config Config, clock clockwork.Clock) *Coordinator {
	c := &Coordinator{
		engine:    engine,
		config:    config,
		clock:     clock,
		localDesc: localDesc,
		events:    make(chan event, 128),
		intent:    idleIntent(0),
	}
	c.published.set(StatePaused, false, "")
	return c
}

// Run processes events until the context is cancelled. It must be called
// exactly once.
func (c *Coordinator) Run(ctx context.Context) {
	log.Info().Msg("intent coordinator started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("intent coordinator shutting down")
			return
		case ev := <-c.events:
			c.dispatch(ev)
		}
	}
}

func (c *Coordinator) enqueue(ev event) {
	select {
	case c.events <- ev:
	default:
		log.Warn().Str("event", ev.eventName()).Msg("event queue full, dropping event")
	}
}

// Play requests coordinated playback.
func (c *Coordinator) Play() { c.enqueue(localPlayEvent{}) }

// Pause pauses immediately and notifies the peer.
func (c *Coordinator) Pause() { c.enqueue(localPauseEvent{}) }

// Seek requests a coordinated seek to a unified-timeline position.
func (c *Coordinator) Seek(target float64) { c.enqueue(localSeekEvent{target: target}) }

// SwitchAudio routes audio and notifies the peer.
func (c *Coordinator) SwitchAudio(track protocol.AudioTrack) {
	c.enqueue(localAudioEvent{track: track})
}

// SessionOpened implements peer.SessionHandler.
func (c *Coordinator) SessionOpened(sender peer.Sender, role peer.Role) {
	c.enqueue(sessionOpenedEvent{sender: sender, role: role})
}

// RemoteConfig implements peer.SessionHandler.
func (c *Coordinator) RemoteConfig(cfg protocol.StreamConfig) {
	c.enqueue(remoteConfigEvent{cfg: cfg})
}

// CommandAccepted implements peer.SessionHandler.
func (c *Coordinator) CommandAccepted(cmd protocol.Command) {
	c.enqueue(remoteCommandEvent{cmd: cmd})
}

// SessionClosed implements peer.SessionHandler.
func (c *Coordinator) SessionClosed(err error) {
	c.enqueue(sessionClosedEvent{err: err})
}

// EngineStateChanged implements playback.Listener.
func (c *Coordinator) EngineStateChanged(state playback.State) {
	c.enqueue(engineStateEvent{state: state})
}

// BufferingStarted implements playback.Listener.
func (c *Coordinator) BufferingStarted(starved []playback.SourceID) {
	c.enqueue(bufferingStartedEvent{starved: starved})
}

// BufferingComplete implements playback.Listener.
func (c *Coordinator) BufferingComplete() {
	c.enqueue(bufferingCompleteEvent{})
}

// PlayersReady implements playback.Listener.
func (c *Coordinator) PlayersReady() {
	c.enqueue(playersReadyEvent{})
}

// SyncState returns the current derived state.
func (c *Coordinator) SyncState() SyncState {
	return c.published.syncState()
}

// CurrentStatus returns a snapshot for the control surface.
func (c *Coordinator) CurrentStatus() Status {
	state, connected, role := c.published.get()
	status := Status{
		State:     state,
		Playhead:  c.engine.State().Playhead,
		Connected: connected,
		Role:      role,
	}
	if tl := c.published.timeline(); tl != nil {
		status.TimelineDuration = tl.TotalDuration()
		status.FirstSharedFrame = tl.FirstSharedFrame()
	}
	return status
}

func (c *Coordinator) dispatch(ev event) {
	switch ev := ev.(type) {
	case localPlayEvent:
		c.handleLocalPlay()
	case localPauseEvent:
		c.handleLocalPause()
	case localSeekEvent:
		c.handleLocalSeek(ev.target)
	case localAudioEvent:
		c.handleLocalAudio(ev.track)
	case remoteCommandEvent:
		c.handleRemoteCommand(ev.cmd)
	case engineStateEvent:
		c.handleEngineState(ev.state)
	case bufferingStartedEvent:
		c.handleBufferingStarted(ev.starved)
	case bufferingCompleteEvent:
		c.handleBufferingComplete()
	case playersReadyEvent:
		c.handlePlayersReady()
	case sessionOpenedEvent:
		c.handleSessionOpened(ev.sender, ev.role)
	case remoteConfigEvent:
		c.handleRemoteConfig(ev.cfg)
	case sessionClosedEvent:
		c.handleSessionClosed(ev.err)
	case readyTimeoutEvent:
		c.handleReadyTimeout(ev.generation)
	}
}

// --- local intents ---

func (c *Coordinator) handleLocalPlay() {
	playhead := c.engine.State().Playhead

	if !c.engine.ActuallyReady() {
		log.Info().Float64("playhead", playhead).Msg("local play while buffering")
		c.startIntent(Intent{
			Type:           IntentPlay,
			Initiator:      InitiatorLocal,
			TargetPlayhead: playhead,
			Status:         StatusBuffering,
		})
		c.send(protocol.PlayNotReady())
		return
	}

	log.Info().Float64("playhead", playhead).Msg("local play, coordinating with peer")
	c.startIntent(Intent{
		Type:           IntentPlay,
		Initiator:      InitiatorLocal,
		TargetPlayhead: playhead,
		Status:         StatusCoordinating,
	})
	// Playback does not start until the peer confirms readiness.
	c.send(protocol.PlayIntent(playhead))
}

func (c *Coordinator) handleLocalPause() {
	if deriveSyncState(c.intent) == StatePaused {
		// Already paused: no outbound command, no state change.
		return
	}

	// Pausing is unilaterally safe: no coordination wait.
	if err := c.engine.Pause(); err != nil {
		log.Error().Err(err).Msg("engine pause failed")
	}
	playhead := c.engine.State().Playhead

	log.Info().Float64("playhead", playhead).Msg("local pause")
	c.startIntent(Intent{
		Type:           IntentPause,
		Initiator:      InitiatorLocal,
		TargetPlayhead: playhead,
		Status:         StatusCoordinating,
	})
	c.send(protocol.PauseIntent(playhead))
	c.completeIntent()
}

func (c *Coordinator) handleLocalSeek(target float64) {
	target = c.clampTarget(target)

	log.Info().Float64("target", target).Msg("local seek, coordinating with peer")
	c.startIntent(Intent{
		Type:           IntentSeek,
		Initiator:      InitiatorLocal,
		TargetPlayhead: target,
		Status:         StatusCoordinating,
	})
	c.send(protocol.SeekIntent(target))
	c.performSeek(target)
}

func (c *Coordinator) handleLocalAudio(track protocol.AudioTrack) {
	log.Info().Str("track", string(track)).Msg("local audio change")
	if err := c.engine.SwitchAudio(track); err != nil {
		log.Error().Err(err).Msg("engine audio switch failed")
	}
	c.startIntent(Intent{
		Type:      IntentAudioChange,
		Initiator: InitiatorLocal,
		Track:     track,
		Status:    StatusCoordinating,
	})
	c.send(protocol.AudioChange(track))
	c.completeIntent()
}

// --- remote commands ---

func (c *Coordinator) handleRemoteCommand(cmd protocol.Command) {
	log.Debug().
		Str("command", string(cmd.Type)).
		Str("sender", cmd.SenderID).
		Msg("applying remote command")

	switch cmd.Type {
	case protocol.CmdPlayIntent:
		c.handleRemotePlayIntent(cmd)
	case protocol.CmdPlayReady:
		c.handleRemotePlayReady(cmd)
	case protocol.CmdPlayNotReady:
		c.handleRemotePlayNotReady()
	case protocol.CmdPauseIntent:
		c.handleRemotePauseIntent(cmd)
	case protocol.CmdSeekIntent:
		c.handleRemoteSeekIntent(cmd)
	case protocol.CmdSeekComplete:
		c.handleRemoteSeekComplete(cmd)
	case protocol.CmdAudioChange:
		c.handleRemoteAudioChange(cmd)
	}
}

func (c *Coordinator) handleRemotePlayIntent(cmd protocol.Command) {
	playhead, _ := cmd.Playhead()

	if !c.engine.ActuallyReady() {
		c.startIntent(Intent{
			Type:           IntentPlay,
			Initiator:      InitiatorRemote,
			TargetPlayhead: playhead,
			ClockStamp:     cmd.Clock,
			Status:         StatusBuffering,
		})
		c.deferredRemotePlay = true
		c.send(protocol.PlayNotReady())
		return
	}

	c.startIntent(Intent{
		Type:           IntentPlay,
		Initiator:      InitiatorRemote,
		TargetPlayhead: playhead,
		ClockStamp:     cmd.Clock,
		Status:         StatusCoordinating,
	})
	c.send(protocol.PlayReady(c.engine.State().Playhead))
	if err := c.engine.Play(); err != nil {
		log.Error().Err(err).Msg("engine play failed")
	}
	c.completeIntent()
}

func (c *Coordinator) handleRemotePlayReady(cmd protocol.Command) {
	// The rendezvous point: only a pending local play intent may act.
	if c.intent.Type != IntentPlay || c.intent.Initiator != InitiatorLocal {
		return
	}
	if c.intent.Status != StatusCoordinating && c.intent.Status != StatusWaiting {
		return
	}

	log.Info().Msg("peer ready, starting playback")
	if err := c.engine.Play(); err != nil {
		log.Error().Err(err).Msg("engine play failed")
	}
	c.completeIntent()
}

func (c *Coordinator) handleRemotePlayNotReady() {
	if c.intent.Type != IntentPlay || c.intent.Initiator != InitiatorLocal {
		return
	}
	if c.intent.Status != StatusCoordinating {
		return
	}
	log.Info().Msg("peer still buffering, play pending")
	c.updateIntentStatus(StatusWaiting)
}

func (c *Coordinator) handleRemotePauseIntent(cmd protocol.Command) {
	// Pause never coordinates a wait: apply unconditionally.
	if err := c.engine.Pause(); err != nil {
		log.Error().Err(err).Msg("engine pause failed")
	}

	if target, ok := cmd.Playhead(); ok {
		local := c.engine.State().Playhead
		if drift := math.Abs(local - target); drift > c.config.DriftThreshold {
			log.Info().
				Float64("local", local).
				Float64("remote", target).
				Float64("drift", drift).
				Msg("correcting playhead drift after remote pause")
			if err := c.engine.Seek(target); err != nil {
				log.Error().Err(err).Msg("drift correction seek failed")
			}
		}
	}

	playhead, _ := cmd.Playhead()
	c.startIntent(Intent{
		Type:           IntentPause,
		Initiator:      InitiatorRemote,
		TargetPlayhead: playhead,
		ClockStamp:     cmd.Clock,
		Status:         StatusCoordinating,
	})
	c.completeIntent()
}

func (c *Coordinator) handleRemoteSeekIntent(cmd protocol.Command) {
	target, ok := cmd.Playhead()
	if !ok {
		log.Warn().Msg("seekIntent without target playhead, ignoring")
		return
	}

	log.Info().Float64("target", target).Msg("remote seek")
	c.startIntent(Intent{
		Type:           IntentSeek,
		Initiator:      InitiatorRemote,
		TargetPlayhead: target,
		ClockStamp:     cmd.Clock,
		Status:         StatusCoordinating,
	})
	c.performSeek(target)
}

func (c *Coordinator) handleRemoteSeekComplete(cmd protocol.Command) {
	if c.intent.Type != IntentSeek {
		return
	}
	playhead, ok := cmd.Playhead()
	if !ok {
		return
	}
	if math.Abs(playhead-c.intent.TargetPlayhead) > c.config.SeekTolerance {
		log.Debug().
			Float64("reported", playhead).
			Float64("target", c.intent.TargetPlayhead).
			Msg("seekComplete for a different target, ignoring")
		return
	}

	log.Info().Float64("target", c.intent.TargetPlayhead).Msg("seek rendezvous complete")
	c.completeIntent()
}

func (c *Coordinator) handleRemoteAudioChange(cmd protocol.Command) {
	// Track names are peer-relative: their "local" is our "remote".
	track := cmd.Track.Inverted()
	log.Info().Str("track", string(track)).Msg("remote audio change")
	if err := c.engine.SwitchAudio(track); err != nil {
		log.Error().Err(err).Msg("engine audio switch failed")
	}
	c.startIntent(Intent{
		Type:       IntentAudioChange,
		Initiator:  InitiatorRemote,
		Track:      track,
		ClockStamp: cmd.Clock,
		Status:     StatusCoordinating,
	})
	c.completeIntent()
}

// --- engine feedback ---

func (c *Coordinator) handleEngineState(state playback.State) {
	if state.Status != playback.StatusReady {
		return
	}
	if c.intent.Type != IntentSeek {
		return
	}
	if c.intent.Status != StatusCoordinating && c.intent.Status != StatusWaiting {
		return
	}
	if math.Abs(state.Playhead-c.intent.TargetPlayhead) > c.config.SeekTolerance {
		return
	}
	// A readiness flag alone is not enough; the buffered ranges must back
	// it up before the peer is told the seek landed.
	if !c.engine.ActuallyReady() {
		return
	}

	c.send(protocol.SeekComplete(state.Playhead))

	if c.intent.Initiator == InitiatorRemote {
		// Nothing further to wait for on this side.
		c.completeIntent()
	}
	// A local seek stays pending until the peer's own seekComplete arrives.
}

func (c *Coordinator) handleBufferingStarted(starved []playback.SourceID) {
	log.Info().Interface("starved", starved).Msg("buffering started")
	c.stateBeforeBuffering = deriveSyncState(c.intent)
	c.intent.Status = StatusBuffering
	c.publish()
	c.send(protocol.PlayNotReady())
}

func (c *Coordinator) handleBufferingComplete() {
	log.Info().Msg("buffering complete")

	if c.deferredRemotePlay {
		// The peer has been waiting on us; confirm and start.
		c.deferredRemotePlay = false
		c.stateBeforeBuffering = ""
		c.send(protocol.PlayReady(c.engine.State().Playhead))
		if err := c.engine.Play(); err != nil {
			log.Error().Err(err).Msg("engine play failed")
		}
		c.completeIntent()
		return
	}

	wasPlaying := c.stateBeforeBuffering == StatePlaying
	c.stateBeforeBuffering = ""

	if wasPlaying {
		// Playback was interrupted: renegotiate rather than blindly resume,
		// since the peer paused on our playNotReady.
		playhead := c.engine.State().Playhead
		c.startIntent(Intent{
			Type:           IntentPlay,
			Initiator:      InitiatorLocal,
			TargetPlayhead: playhead,
			Status:         StatusCoordinating,
		})
		c.send(protocol.PlayIntent(playhead))
		return
	}

	// Only an intent stuck in buffering settles here; an in-flight intent
	// that superseded the buffering one is left to its own rendezvous.
	if c.intent.Status == StatusBuffering {
		c.completeIntent()
	}
}

func (c *Coordinator) handlePlayersReady() {
	log.Info().Msg("players ready")
	c.enginesReady = true
	c.maybeInitialSync()
}

// --- connection lifecycle ---

func (c *Coordinator) handleSessionOpened(sender peer.Sender, role peer.Role) {
	c.sender = sender
	c.role = role
	c.publish()
}

func (c *Coordinator) handleRemoteConfig(cfg protocol.StreamConfig) {
	c.remoteCfg = &cfg
	// A (re)announced configuration invalidates the previous timeline.
	c.timeline = nil
	c.maybeInitialSync()
}

func (c *Coordinator) handleSessionClosed(err error) {
	log.Info().Err(err).Msg("session closed")
	c.sender = nil
	c.role = ""
	// Pending coordination can never resolve without a peer.
	if c.intent.Status == StatusCoordinating || c.intent.Status == StatusWaiting {
		c.resetIntent()
	}
	c.publish()
}

func (c *Coordinator) handleReadyTimeout(generation uint64) {
	if generation != c.intent.generation {
		return
	}
	if c.intent.Status != StatusCoordinating && c.intent.Status != StatusWaiting {
		return
	}
	log.Error().
		Err(ErrPlayReadyTimeout).
		Str("intent", string(c.intent.Type)).
		Msg("pending intent timed out")
	c.resetIntent()
}

// maybeInitialSync computes the unified timeline once both sides' streams
// are known and the players have loaded metadata, then seeks both peers to
// the first instant covered by both recordings.
func (c *Coordinator) maybeInitialSync() {
	if !c.enginesReady || c.remoteCfg == nil || c.timeline != nil {
		return
	}

	remoteDesc := timeline.Descriptor{
		StreamID:       c.remoteCfg.StreamID,
		StartTimestamp: c.remoteCfg.StartTimestamp,
		Duration:       c.remoteCfg.DurationHint,
	}
	unified, err := timeline.Unify(c.localDesc, remoteDesc)
	if err != nil {
		// Fatal for the session: without a timeline nothing can be mapped.
		log.Error().Err(err).Msg("cannot unify timelines")
		return
	}
	c.timeline = unified
	c.published.setTimeline(unified)

	target := unified.FirstSharedFrame()
	log.Info().
		Float64("first_shared_frame", target).
		Float64("total_duration", unified.TotalDuration()).
		Msg("timeline unified, seeking to first shared frame")

	c.startIntent(Intent{
		Type:           IntentSeek,
		Initiator:      InitiatorLocal,
		TargetPlayhead: target,
		Status:         StatusCoordinating,
	})
	c.send(protocol.SeekIntent(target))
	c.performSeek(target)
}

// --- intent lifecycle ---

// startIntent replaces the current intent wholesale and re-derives the
// sync state. A play intent waiting on the peer is bounded by the
// play-ready timeout.
func (c *Coordinator) startIntent(intent Intent) {
	c.cancelReadyTimer()
	// Superseding is total: any play deferred on behalf of the peer dies
	// with the intent that carried it.
	c.deferredRemotePlay = false

	c.generation++
	intent.generation = c.generation
	c.intent = intent

	if intent.Type == IntentPlay && intent.Initiator == InitiatorLocal &&
		intent.Status == StatusCoordinating {
		c.armReadyTimer(intent.generation)
	}

	c.publish()
}

func (c *Coordinator) updateIntentStatus(status IntentStatus) {
	c.intent.Status = status
	c.publish()
}

// completeIntent finishes the in-flight intent. The resting state follows
// the engine: playing collapses to a completed play intent, anything else
// to idle.
func (c *Coordinator) completeIntent() {
	c.cancelReadyTimer()
	c.generation++
	if c.engine.State().Status == playback.StatusPlaying {
		c.intent = Intent{
			Type:       IntentPlay,
			Initiator:  c.intent.Initiator,
			Status:     StatusComplete,
			generation: c.generation,
		}
	} else {
		c.intent = idleIntent(c.generation)
	}
	c.publish()
}

// resetIntent abandons the in-flight intent; the user may re-issue it.
func (c *Coordinator) resetIntent() {
	c.cancelReadyTimer()
	c.generation++
	c.intent = idleIntent(c.generation)
	c.deferredRemotePlay = false
	c.publish()
}

func (c *Coordinator) armReadyTimer(generation uint64) {
	c.readyTimer = c.clock.AfterFunc(c.config.PlayReadyTimeout, func() {
		c.enqueue(readyTimeoutEvent{generation: generation})
	})
}

func (c *Coordinator) cancelReadyTimer() {
	if c.readyTimer != nil {
		c.readyTimer.Stop()
		c.readyTimer = nil
	}
}

// --- helpers ---

func (c *Coordinator) send(cmd protocol.Command) {
	if c.sender == nil {
		log.Debug().Str("command", string(cmd.Type)).Msg("no peer connection, command not sent")
		return
	}
	if err := c.sender.SendCommand(cmd); err != nil {
		log.Error().Err(err).Str("command", string(cmd.Type)).Msg("failed to send command")
	}
}

// performSeek pauses first so the two sides cannot drift while the seek
// settles, then issues the engine seek.
func (c *Coordinator) performSeek(target float64) {
	if err := c.engine.Pause(); err != nil {
		log.Error().Err(err).Msg("engine pause before seek failed")
	}
	if err := c.engine.Seek(target); err != nil {
		log.Error().Err(err).Msg("engine seek failed")
	}
}

func (c *Coordinator) clampTarget(target float64) float64 {
	if target < 0 {
		return 0
	}
	if c.timeline != nil && target > c.timeline.TotalDuration() {
		return c.timeline.TotalDuration()
	}
	return target
}

func (c *Coordinator) publish() {
	state := deriveSyncState(c.intent)
	changed := c.published.update(state, c.sender != nil, string(c.role))
	if changed && c.OnSyncState != nil {
		c.OnSyncState(state)
	}
	log.Debug().
		Str("intent", string(c.intent.Type)).
		Str("status", string(c.intent.Status)).
		Str("sync_state", string(state)).
		Msg("sync state derived")
}
