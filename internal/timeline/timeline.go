package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig indicates a stream descriptor that cannot anchor a shared
// timeline: missing stream id or an unparseable start timestamp.
var ErrInvalidConfig = errors.New("invalid stream configuration")

// Source selects one of the two recordings in a session.
type Source int

const (
	SourceA Source = iota
	SourceB
)

func (s Source) String() string {
	if s == SourceA {
		return "a"
	}
	return "b"
}

// Descriptor carries what the unifier needs to know about one recording:
// its identity, the wall-clock instant it started, and its length in seconds.
type Descriptor struct {
	StreamID       string
	StartTimestamp string
	Duration       float64
}

// Unified maps between each recording's local media time and a shared
// coordinate system spanning both recordings' combined wall-clock range.
// Position 0 corresponds to the earlier of the two recordings' starts.
// Immutable once computed.
//
// Each source is held as its offset from the timeline start rather than an
// absolute instant: the offsets are small, so the mappings stay exact to
// well below a millisecond, which absolute epoch seconds in float64 cannot
// guarantee.
type Unified struct {
	offsetA   float64 // seconds from timeline start to source A's start
	offsetB   float64
	durationA float64
	durationB float64
	total     float64
}

// Unify computes the shared timeline from both stream descriptors.
func Unify(a, b Descriptor) (*Unified, error) {
	startA, err := parseStart(a)
	if err != nil {
		return nil, err
	}
	startB, err := parseStart(b)
	if err != nil {
		return nil, err
	}

	// Subtract in integer milliseconds first so the offsets are exact.
	msA := startA.UnixMilli()
	msB := startB.UnixMilli()
	base := min(msA, msB)

	u := &Unified{
		offsetA:   float64(msA-base) / 1000.0,
		offsetB:   float64(msB-base) / 1000.0,
		durationA: a.Duration,
		durationB: b.Duration,
	}
	u.total = max(u.offsetA+u.durationA, u.offsetB+u.durationB)
	return u, nil
}

func parseStart(d Descriptor) (time.Time, error) {
	if d.StreamID == "" {
		return time.Time{}, fmt.Errorf("%w: missing stream id", ErrInvalidConfig)
	}
	ts, err := ParseTimestamp(d.StartTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: stream %q: %v", ErrInvalidConfig, d.StreamID, err)
	}
	return ts, nil
}

// ParseTimestamp parses an absolute start timestamp. RFC3339 is the wire
// format; zone-less ISO-8601 timestamps are accepted as UTC because recording
// software tends to emit them.
func ParseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("missing start timestamp")
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02T15:04:05.999999999", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable start timestamp %q", value)
	}
	return ts.UTC(), nil
}

// ToUnified maps a source-local media time (seconds) onto the shared timeline.
func (u *Unified) ToUnified(local float64, src Source) float64 {
	return local + u.offset(src)
}

// ToLocal maps a shared-timeline position back to a source-local media time.
// No clamping is performed; callers clamp to [0, Duration(src)].
func (u *Unified) ToLocal(unified float64, src Source) float64 {
	return unified - u.offset(src)
}

// FirstSharedFrame returns the first shared-timeline position at which both
// recordings have footage.
func (u *Unified) FirstSharedFrame() float64 {
	return max(u.offsetA, u.offsetB)
}

// TotalDuration returns the length of the combined timeline in seconds.
func (u *Unified) TotalDuration() float64 {
	return u.total
}

// Duration returns the length of one recording in seconds.
func (u *Unified) Duration(src Source) float64 {
	if src == SourceA {
		return u.durationA
	}
	return u.durationB
}

func (u *Unified) offset(src Source) float64 {
	if src == SourceA {
		return u.offsetA
	}
	return u.offsetB
}
