// Package remote maps remote-control events (lock screen, Bluetooth, car
// head unit) and audio-focus interruptions onto the playback controller.
package remote

import (
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/engine"
)

// Player is the controller surface the dispatcher drives.
type Player interface {
	Play()
	Stop()
	WantsPlayback() bool
}

// Marker reads the persisted "was playing" record.
type Marker interface {
	LastPlayingAt() (time.Time, bool, error)
}

// Dispatcher subscribes to the engine's remote-command and duck events and
// translates them into controller operations.
type Dispatcher struct {
	mu sync.Mutex

	player Player
	marker Marker
	window time.Duration
	now    func() time.Time

	events *engine.Dispatcher
	tokens []string

	// Duck bookkeeping
	ducked            bool
	desiredBeforeDuck bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a dispatcher. window bounds how old the persisted playing
// marker may be for a remote-play event to auto-resume.
func New(player Player, marker Marker, window time.Duration, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		player: player,
		marker: marker,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Bind subscribes to the engine event dispatcher. Call Close to release the
// subscriptions.
func (d *Dispatcher) Bind(events *engine.Dispatcher) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = events
	d.tokens = append(d.tokens,
		events.Subscribe(engine.EventRemoteCommand, d.onRemote),
		events.Subscribe(engine.EventDuck, d.onDuck),
	)
}

// Close releases the event subscriptions.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	events := d.events
	tokens := d.tokens
	d.tokens = nil
	d.mu.Unlock()

	if events == nil {
		return
	}
	for _, t := range tokens {
		events.Unsubscribe(t)
	}
}

func (d *Dispatcher) onRemote(e engine.Event) {
	switch e.Command {
	case engine.RemotePlay:
		if !d.playedRecently() {
			zlog.Info().Msg("remote: ignoring cold play command, no recent playback")
			return
		}
		d.player.Play()

	case engine.RemotePause, engine.RemoteStop:
		// Pause is deliberately disabled for a live source: both map to stop
		d.player.Stop()

	case engine.RemoteNext, engine.RemotePrevious:
		// No track list for a single live stream
		zlog.Debug().Msgf("remote: ignoring %s command", e.Command)
	}
}

func (d *Dispatcher) onDuck(e engine.Event) {
	d.mu.Lock()
	if e.Ducked {
		if d.ducked {
			d.mu.Unlock()
			return
		}
		d.ducked = true
		d.desiredBeforeDuck = d.player.WantsPlayback()
		resume := d.desiredBeforeDuck
		d.mu.Unlock()

		if resume {
			zlog.Info().Msg("remote: audio focus lost, stopping playback")
			d.player.Stop()
		}
		return
	}

	if !d.ducked {
		d.mu.Unlock()
		return
	}
	d.ducked = false
	resume := d.desiredBeforeDuck
	d.desiredBeforeDuck = false
	d.mu.Unlock()

	if resume {
		zlog.Info().Msg("remote: audio focus restored, resuming playback")
		d.player.Play()
	}
}

// playedRecently reports whether the persisted marker shows playback within
// the resume window.
func (d *Dispatcher) playedRecently() bool {
	if d.player.WantsPlayback() {
		return true
	}
	if d.marker == nil {
		return false
	}
	at, playing, err := d.marker.LastPlayingAt()
	if err != nil {
		zlog.Debug().Err(err).Msg("remote: reading play marker failed")
		return false
	}
	if !playing {
		return false
	}
	return d.now().Sub(at) <= d.window
}
