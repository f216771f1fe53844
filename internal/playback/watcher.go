package playback

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// BufferEvents is the subset of Listener the watcher produces.
type BufferEvents interface {
	BufferingStarted(starved []SourceID)
	BufferingComplete()
}

// debounceTicks is how many consecutive polls a condition must hold before
// the watcher flips state, so a single short stall does not flap the
// session into renegotiating readiness.
const debounceTicks = 2

// Watcher derives buffering-started/complete events for engines that only
// expose buffered ranges, by polling readiness on a fixed cadence.
type Watcher struct {
	engine   Engine
	events   BufferEvents
	clock    clockwork.Clock
	interval time.Duration

	buffering bool
	streak    int
}

// NewWatcher creates a watcher polling the engine at the given interval.
func NewWatcher(engine Engine, events BufferEvents, clock clockwork.Clock, interval time.Duration) *Watcher {
	return &Watcher{
		engine:   engine,
		events:   events,
		clock:    clock,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			w.poll()
		}
	}
}

func (w *Watcher) poll() {
	if w.buffering {
		if w.engine.ActuallyReady() {
			w.streak++
			if w.streak >= debounceTicks {
				w.buffering = false
				w.streak = 0
				log.Debug().Msg("buffer watcher: all sources recovered")
				w.events.BufferingComplete()
			}
		} else {
			w.streak = 0
		}
		return
	}

	starving := w.engine.State().Status == StatusPlaying && !w.engine.ActuallyReady()
	if starving {
		w.streak++
		if w.streak >= debounceTicks {
			w.buffering = true
			w.streak = 0
			starved := w.engine.Starved()
			log.Debug().Interface("starved", starved).Msg("buffer watcher: playback starved")
			w.events.BufferingStarted(starved)
		}
	} else {
		w.streak = 0
	}
}
