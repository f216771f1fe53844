package peer

// Role is the side this peer ended up on after negotiation.
type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Phase is a state of the role-negotiation machine. Both peers run the
// identical machine and converge into exactly one host/guest pairing,
// because only one side can successfully claim the session identifier.
type Phase int

const (
	PhaseAttemptGuest Phase = iota
	PhaseAttemptHost
	PhaseConnected
	PhaseDisconnected
	PhaseTerminated
)

func (p Phase) String() string {
	switch p {
	case PhaseAttemptGuest:
		return "attempt-guest"
	case PhaseAttemptHost:
		return "attempt-host"
	case PhaseConnected:
		return "connected"
	case PhaseDisconnected:
		return "disconnected"
	default:
		return "terminated"
	}
}

// Outcome classifies the result of one negotiation or connection step.
type Outcome int

const (
	// OutcomeConnected means a channel was established.
	OutcomeConnected Outcome = iota
	// OutcomeTimeout means the guest attempt found no listening host.
	OutcomeTimeout
	// OutcomeTaken means the host claim raced and lost.
	OutcomeTaken
	// OutcomeClosed means the live channel was closed cleanly by the peer.
	OutcomeClosed
	// OutcomeError means a transport-level failure.
	OutcomeError
)

// NextPhase is the negotiation transition function, kept pure so the retry
// and fallback paths are testable without real network timing.
func NextPhase(p Phase, out Outcome) Phase {
	switch p {
	case PhaseAttemptGuest:
		switch out {
		case OutcomeConnected:
			return PhaseConnected
		case OutcomeTimeout, OutcomeClosed:
			return PhaseAttemptHost
		default:
			return PhaseTerminated
		}
	case PhaseAttemptHost:
		switch out {
		case OutcomeConnected:
			return PhaseConnected
		case OutcomeTaken:
			return PhaseAttemptGuest
		case OutcomeTimeout, OutcomeClosed:
			return PhaseAttemptGuest
		default:
			return PhaseTerminated
		}
	case PhaseConnected:
		switch out {
		case OutcomeClosed:
			return PhaseDisconnected
		case OutcomeError:
			return PhaseTerminated
		default:
			return PhaseConnected
		}
	case PhaseDisconnected:
		// Reconnection restarts the whole negotiation.
		return PhaseAttemptGuest
	default:
		return PhaseTerminated
	}
}
