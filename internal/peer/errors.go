package peer

import "errors"

var (
	// ErrConnectionTimeout means the guest-side connection attempt did not
	// reach a listening host within the bound. Recovered locally by falling
	// back to the host role.
	ErrConnectionTimeout = errors.New("connection attempt timed out")

	// ErrIdentifierTaken means a concurrent host already claimed the session
	// identifier. Recovered locally by falling back to the guest role.
	ErrIdentifierTaken = errors.New("session identifier already taken")

	// ErrPeerDisconnected means the peer closed the channel cleanly. The
	// manager re-runs role negotiation after a settle delay.
	ErrPeerDisconnected = errors.New("peer disconnected")

	// ErrPeerTerminated means the channel was lost to a transport-level
	// error. Fatal to the session; no automatic retry.
	ErrPeerTerminated = errors.New("peer connection terminated")
)
