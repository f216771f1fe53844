package coordinator

import (
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reelsync/reelsync/internal/peer"
	"github.com/reelsync/reelsync/internal/playback"
	"github.com/reelsync/reelsync/internal/protocol"
	"github.com/reelsync/reelsync/internal/timeline"
)

type fakeEngine struct {
	state   playback.State
	ready   bool
	starved []playback.SourceID
	calls   []string
}

func (e *fakeEngine) Play() error {
	e.calls = append(e.calls, "play")
	e.state.Status = playback.StatusPlaying
	return nil
}

func (e *fakeEngine) Pause() error {
	e.calls = append(e.calls, "pause")
	e.state.Status = playback.StatusPaused
	return nil
}

func (e *fakeEngine) Seek(position float64) error {
	e.calls = append(e.calls, fmt.Sprintf("seek:%.1f", position))
	e.state.Playhead = position
	return nil
}

func (e *fakeEngine) SwitchAudio(track protocol.AudioTrack) error {
	e.calls = append(e.calls, "audio:"+string(track))
	return nil
}

func (e *fakeEngine) State() playback.State        { return e.state }
func (e *fakeEngine) ActuallyReady() bool          { return e.ready }
func (e *fakeEngine) Starved() []playback.SourceID { return e.starved }

type fakeSender struct {
	sent []protocol.Command
}

func (s *fakeSender) SendCommand(cmd protocol.Command) error {
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *fakeSender) last(t *testing.T) protocol.Command {
	t.Helper()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

func localDescriptor() timeline.Descriptor {
	return timeline.Descriptor{
		StreamID:       "hunt-a",
		StartTimestamp: "2024-01-15T20:00:00",
		Duration:       3600,
	}
}

func remoteConfig() protocol.StreamConfig {
	return protocol.StreamConfig{
		StreamID:       "hunt-b",
		StartTimestamp: "2024-01-15T20:00:20",
		DurationHint:   3600,
	}
}

func newTestCoordinator(t *testing.T) (*Coordinator, *fakeEngine, *fakeSender, *clockwork.FakeClock) {
	t.Helper()
	engine := &fakeEngine{ready: true}
	clock := clockwork.NewFakeClock()
	c := New(engine, localDescriptor(), DefaultConfig(), clock)
	sender := &fakeSender{}
	c.dispatch(sessionOpenedEvent{sender: sender, role: peer.RoleHost})
	return c, engine, sender, clock
}

// drainEvents dispatches everything the coordinator has queued for itself,
// such as timer callbacks.
func drainEvents(t *testing.T, c *Coordinator) {
	t.Helper()
	for {
		select {
		case ev := <-c.events:
			c.dispatch(ev)
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func TestLocalPlayWaitsForPeerReadiness(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.state.Playhead = 42.0

	c.dispatch(localPlayEvent{})

	assert.Equal(t, StatePendingPlay, c.SyncState())
	assert.Equal(t, protocol.CmdPlayIntent, sender.last(t).Type)
	assert.NotContains(t, engine.calls, "play", "must not play before the peer confirms")

	c.dispatch(remoteCommandEvent{cmd: protocol.PlayReady(42.0)})

	assert.Equal(t, StatePlaying, c.SyncState())
	assert.Contains(t, engine.calls, "play")
}

func TestPlayRendezvousBetweenTwoCoordinators(t *testing.T) {
	engineA := &fakeEngine{ready: true}
	engineB := &fakeEngine{ready: true}
	a := New(engineA, localDescriptor(), DefaultConfig(), clockwork.NewFakeClock())
	b := New(engineB, localDescriptor(), DefaultConfig(), clockwork.NewFakeClock())

	// Each side's outbound command is dispatched straight into the other.
	a.dispatch(sessionOpenedEvent{sender: dispatchSender{to: b}, role: peer.RoleHost})
	b.dispatch(sessionOpenedEvent{sender: dispatchSender{to: a}, role: peer.RoleGuest})

	a.dispatch(localPlayEvent{})

	assert.Equal(t, StatePlaying, a.SyncState())
	assert.Equal(t, StatePlaying, b.SyncState())
	assert.Contains(t, engineA.calls, "play")
	assert.Contains(t, engineB.calls, "play")
}

// dispatchSender delivers commands synchronously to another coordinator.
type dispatchSender struct {
	to *Coordinator
}

func (s dispatchSender) SendCommand(cmd protocol.Command) error {
	s.to.dispatch(remoteCommandEvent{cmd: cmd})
	return nil
}

func TestRemotePlayWhileBufferingDefersUntilRecovered(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.ready = false

	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(10.0)})

	assert.Equal(t, StateBuffering, c.SyncState())
	assert.Equal(t, protocol.CmdPlayNotReady, sender.last(t).Type)
	assert.NotContains(t, engine.calls, "play")

	engine.ready = true
	c.dispatch(bufferingCompleteEvent{})

	assert.Equal(t, protocol.CmdPlayReady, sender.last(t).Type)
	assert.Contains(t, engine.calls, "play")
	assert.Equal(t, StatePlaying, c.SyncState())
}

func TestLocalPauseIsImmediateAndIdempotent(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.state.Status = playback.StatusPlaying
	engine.state.Playhead = 30.0
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(30.0)})
	require.Equal(t, StatePlaying, c.SyncState())

	c.dispatch(localPauseEvent{})

	assert.Equal(t, StatePaused, c.SyncState())
	assert.Contains(t, engine.calls, "pause")
	assert.Equal(t, protocol.CmdPauseIntent, sender.last(t).Type)

	// A second pause while already paused sends nothing.
	sent := len(sender.sent)
	c.dispatch(localPauseEvent{})
	assert.Len(t, sender.sent, sent)
}

func TestRemotePauseCorrectsDrift(t *testing.T) {
	c, engine, _, _ := newTestCoordinator(t)
	engine.state.Playhead = 50.6

	c.dispatch(remoteCommandEvent{cmd: protocol.PauseIntent(50.0)})

	assert.Contains(t, engine.calls, "pause")
	assert.Contains(t, engine.calls, "seek:50.0")
	assert.Equal(t, StatePaused, c.SyncState())
}

func TestRemotePauseWithinThresholdSkipsCorrection(t *testing.T) {
	c, engine, _, _ := newTestCoordinator(t)
	engine.state.Playhead = 50.3

	c.dispatch(remoteCommandEvent{cmd: protocol.PauseIntent(50.0)})

	assert.Contains(t, engine.calls, "pause")
	assert.NotContains(t, engine.calls, "seek:50.0")
}

func TestSeekRendezvous(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)

	c.dispatch(localSeekEvent{target: 120.0})

	assert.Equal(t, StatePendingSeek, c.SyncState())
	assert.Equal(t, protocol.CmdSeekIntent, sender.last(t).Type)
	assert.Contains(t, engine.calls, "pause")
	assert.Contains(t, engine.calls, "seek:120.0")

	// Local engine settles at the target.
	c.dispatch(engineStateEvent{state: playback.State{
		Status:   playback.StatusReady,
		Playhead: 120.0,
	}})
	assert.Equal(t, protocol.CmdSeekComplete, sender.last(t).Type)
	assert.Equal(t, StatePendingSeek, c.SyncState(), "still waiting on the peer")

	// Peer reports its own seek landed.
	c.dispatch(remoteCommandEvent{cmd: protocol.SeekComplete(120.05)})
	assert.Equal(t, StatePaused, c.SyncState())
}

func TestSeekCompleteForStaleTargetIgnored(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)

	c.dispatch(localSeekEvent{target: 120.0})
	c.dispatch(remoteCommandEvent{cmd: protocol.SeekComplete(60.0)})

	assert.Equal(t, StatePendingSeek, c.SyncState())
}

func TestNewIntentReplacesPendingIntent(t *testing.T) {
	c, _, sender, _ := newTestCoordinator(t)

	c.dispatch(localPlayEvent{})
	require.Equal(t, StatePendingPlay, c.SyncState())

	c.dispatch(localSeekEvent{target: 200.0})
	assert.Equal(t, StatePendingSeek, c.SyncState())
	assert.Equal(t, protocol.CmdSeekIntent, sender.last(t).Type)

	// A late playReady for the replaced intent must not start playback.
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayReady(0)})
	assert.Equal(t, StatePendingSeek, c.SyncState())
}

func TestRemoteAudioChangeInvertsTrack(t *testing.T) {
	c, engine, _, _ := newTestCoordinator(t)

	c.dispatch(remoteCommandEvent{cmd: protocol.AudioChange(protocol.AudioLocal)})

	// Their local audio is our remote source.
	assert.Contains(t, engine.calls, "audio:remote")
	assert.Equal(t, StatePaused, c.SyncState())
}

func TestLocalAudioChangeCompletesImmediately(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)

	c.dispatch(localAudioEvent{track: protocol.AudioRemote})

	assert.Contains(t, engine.calls, "audio:remote")
	assert.Equal(t, protocol.CmdAudioChange, sender.last(t).Type)
	assert.Equal(t, protocol.AudioRemote, sender.last(t).Track)
}

func TestInitialSyncSeeksToFirstSharedFrame(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)

	c.dispatch(remoteConfigEvent{cfg: remoteConfig()})
	assert.Empty(t, engine.calls, "no seek before players load")

	c.dispatch(playersReadyEvent{})

	// Remote starts 20s later, so shared playback begins at unified 20.0.
	assert.Contains(t, engine.calls, "seek:20.0")
	assert.Equal(t, protocol.CmdSeekIntent, sender.last(t).Type)
	target, ok := sender.last(t).Playhead()
	require.True(t, ok)
	assert.InDelta(t, 20.0, target, 1e-9)
	assert.Equal(t, StatePendingSeek, c.SyncState())

	status := c.CurrentStatus()
	assert.InDelta(t, 20.0, status.FirstSharedFrame, 1e-9)
	assert.InDelta(t, 3620.0, status.TimelineDuration, 1e-9)
}

func TestBufferingDuringPlaybackRenegotiates(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.state.Status = playback.StatusPlaying
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(10.0)})
	require.Equal(t, StatePlaying, c.SyncState())

	c.dispatch(bufferingStartedEvent{starved: []playback.SourceID{playback.SourceRemote}})
	assert.Equal(t, StateBuffering, c.SyncState())
	assert.Equal(t, protocol.CmdPlayNotReady, sender.last(t).Type)

	c.dispatch(bufferingCompleteEvent{})

	// Playback was interrupted, so resuming goes back through coordination.
	assert.Equal(t, StatePendingPlay, c.SyncState())
	assert.Equal(t, protocol.CmdPlayIntent, sender.last(t).Type)
}

func TestSupersedingSeekCancelsDeferredPlay(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.ready = false

	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(10.0)})
	require.Equal(t, StateBuffering, c.SyncState())

	// A causally newer remote seek replaces the deferred play wholesale.
	c.dispatch(remoteCommandEvent{cmd: protocol.SeekIntent(60.0)})
	require.Equal(t, StatePendingSeek, c.SyncState())

	engine.ready = true
	c.dispatch(bufferingCompleteEvent{})

	// Recovery must not resurrect the superseded play.
	assert.NotContains(t, engine.calls, "play")
	assert.NotEqual(t, protocol.CmdPlayReady, sender.last(t).Type)
	assert.Equal(t, StatePendingSeek, c.SyncState())

	// The seek rendezvous still resolves normally.
	c.dispatch(engineStateEvent{state: playback.State{
		Status:   playback.StatusReady,
		Playhead: 60.0,
	}})
	assert.Equal(t, protocol.CmdSeekComplete, sender.last(t).Type)
	c.dispatch(remoteCommandEvent{cmd: protocol.SeekComplete(60.0)})
	assert.Equal(t, StatePaused, c.SyncState())
}

func TestDeferredPlayRecoveryClearsInterruptedState(t *testing.T) {
	c, engine, sender, _ := newTestCoordinator(t)
	engine.state.Status = playback.StatusPlaying
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(10.0)})
	require.Equal(t, StatePlaying, c.SyncState())

	// Buffering interrupts playback, then the peer asks to play again
	// while this side is still starved.
	c.dispatch(bufferingStartedEvent{starved: []playback.SourceID{playback.SourceLocal}})
	engine.ready = false
	engine.state.Status = playback.StatusPaused
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayIntent(12.0)})

	engine.ready = true
	c.dispatch(bufferingCompleteEvent{})
	require.Equal(t, protocol.CmdPlayReady, sender.last(t).Type)
	require.Contains(t, engine.calls, "play")

	// A stray recovery afterwards must not renegotiate playback.
	sent := len(sender.sent)
	c.dispatch(bufferingCompleteEvent{})
	assert.Len(t, sender.sent, sent)
	assert.Equal(t, StatePlaying, c.SyncState())
}

func TestPendingPlayTimesOut(t *testing.T) {
	c, engine, _, clock := newTestCoordinator(t)

	c.dispatch(localPlayEvent{})
	require.Equal(t, StatePendingPlay, c.SyncState())

	clock.Advance(DefaultConfig().PlayReadyTimeout + time.Second)
	drainEvents(t, c)

	assert.Equal(t, StatePaused, c.SyncState())
	assert.NotContains(t, engine.calls, "play")

	// A late playReady after the timeout is ignored.
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayReady(0)})
	assert.NotContains(t, engine.calls, "play")
}

func TestPeerNotReadyMarksIntentWaiting(t *testing.T) {
	c, engine, _, _ := newTestCoordinator(t)

	c.dispatch(localPlayEvent{})
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayNotReady()})

	assert.Equal(t, StatePendingPlay, c.SyncState())

	// Readiness can still resolve the waiting intent.
	c.dispatch(remoteCommandEvent{cmd: protocol.PlayReady(0)})
	assert.Contains(t, engine.calls, "play")
	assert.Equal(t, StatePlaying, c.SyncState())
}

func TestSessionClosedResetsPendingIntent(t *testing.T) {
	c, _, _, _ := newTestCoordinator(t)

	c.dispatch(localPlayEvent{})
	require.Equal(t, StatePendingPlay, c.SyncState())

	c.dispatch(sessionClosedEvent{err: peer.ErrPeerDisconnected})

	assert.Equal(t, StatePaused, c.SyncState())
	status := c.CurrentStatus()
	assert.False(t, status.Connected)
}

func TestDeriveSyncStateTable(t *testing.T) {
	tests := []struct {
		name   string
		intent Intent
		want   SyncState
	}{
		{"idle", idleIntent(0), StatePaused},
		{"play coordinating", Intent{Type: IntentPlay, Status: StatusCoordinating}, StatePendingPlay},
		{"play waiting", Intent{Type: IntentPlay, Status: StatusWaiting}, StatePendingPlay},
		{"play complete", Intent{Type: IntentPlay, Status: StatusComplete}, StatePlaying},
		{"play buffering", Intent{Type: IntentPlay, Status: StatusBuffering}, StateBuffering},
		{"pause coordinating", Intent{Type: IntentPause, Status: StatusCoordinating}, StatePaused},
		{"seek coordinating", Intent{Type: IntentSeek, Status: StatusCoordinating}, StatePendingSeek},
		{"seek complete", Intent{Type: IntentSeek, Status: StatusComplete}, StatePaused},
		{"audio coordinating", Intent{Type: IntentAudioChange, Status: StatusCoordinating}, StatePaused},
		{"any buffering", Intent{Type: IntentSeek, Status: StatusBuffering}, StateBuffering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveSyncState(tt.intent))
		})
	}
}
