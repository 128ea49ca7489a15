// Package player provides the live-stream playback controller. It owns the
// desired-vs-actual playback intent for a single always-the-same-URL live
// stream, drives the media engine through play/stop commands, and absorbs
// transient failures with a bounded exponential-backoff reconnect policy.
package player

import (
	"context"
	"sync"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/domain/nowplaying"
	"github.com/eist-radio/streamd/internal/engine"
)

// Marker persists the "was playing, at what time" record used to decide
// whether a cold remote-play event should auto-resume.
type Marker interface {
	MarkPlaying(at time.Time) error
	MarkStopped(at time.Time) error
}

// ScheduleFunc arms a one-shot timer and returns its cancel function.
type ScheduleFunc func(d time.Duration, fn func()) (cancel func())

func defaultSchedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Config holds controller configuration.
type Config struct {
	StreamURL         string
	StationName       string
	OfflineArtworkURL string

	MaxReconnectAttempts int           // Retries before giving up silently
	Backoff              Policy        // Reconnect delay policy
	StallPollInterval    time.Duration // Engine state poll cadence while buffering
	StallTimeout         time.Duration // Continuous buffering beyond this is a failure
	AckTimeout           time.Duration // Force-clears busy if the engine never confirms a command; <0 disables
}

func (c Config) withDefaults() Config {
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.Backoff.Base == 0 {
		c.Backoff.Base = time.Second
	}
	if c.Backoff.Cap == 0 {
		c.Backoff.Cap = time.Minute
	}
	if c.StallPollInterval == 0 {
		c.StallPollInterval = 5 * time.Second
	}
	if c.StallTimeout == 0 {
		c.StallTimeout = 30 * time.Second
	}
	if c.AckTimeout == 0 {
		c.AckTimeout = 15 * time.Second
	}
	return c
}

// pendingCmd identifies the engine command currently in flight.
type pendingCmd int

const (
	pendingNone pendingCmd = iota
	pendingPlay
	pendingStop
)

// Controller manages playback of a single live stream.
type Controller struct {
	mu sync.Mutex

	cfg      Config
	eng      engine.Engine
	marker   Marker
	schedule ScheduleFunc
	now      func() time.Time

	ready  bool
	closed bool

	// Intent state
	desiredPlaying   bool
	busy             bool
	pending          pendingCmd
	cmdGen           int
	engineState      engine.State
	reconnectAttempt int
	lastKnownGoodAt  time.Time

	np nowplaying.NowPlaying

	// Timers: at most one of each outstanding
	bufferingSince  time.Time
	stallCancel     func()
	reconnectCancel func()
	ackCancel       func()

	// Subscriptions
	tokens []string

	// Events
	eventCh chan Status
}

// Option configures a Controller.
type Option func(*Controller)

// WithScheduler replaces the timer implementation, for tests.
func WithScheduler(s ScheduleFunc) Option {
	return func(c *Controller) { c.schedule = s }
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New creates a new playback controller. marker may be nil when resume
// persistence is not wanted.
func New(cfg Config, eng engine.Engine, marker Marker, opts ...Option) *Controller {
	c := &Controller{
		cfg:         cfg.withDefaults(),
		eng:         eng,
		marker:      marker,
		schedule:    defaultSchedule,
		now:         time.Now,
		engineState: engine.StateIdle,
		eventCh:     make(chan Status, 16),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Setup registers the stream as the engine's sole queue entry and subscribes
// to its events. Idempotent: calling Setup again is a no-op.
func (c *Controller) Setup(ctx context.Context) error {
	c.mu.Lock()
	if c.ready || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	if err := c.eng.AddTrack(ctx, c.streamTrack()); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready || c.closed {
		return nil
	}
	c.tokens = append(c.tokens,
		c.eng.Events().Subscribe(engine.EventStateChanged, c.onStateEvent),
		c.eng.Events().Subscribe(engine.EventPlaybackError, c.onErrorEvent),
	)
	c.ready = true
	return nil
}

// Events returns the status snapshot channel.
func (c *Controller) Events() <-chan Status {
	return c.eventCh
}

// Play starts playback. Dropped while another command is in flight. Has no
// error return: failures are absorbed and surface only through the status
// flags.
func (c *Controller) Play() {
	c.mu.Lock()
	if c.closed || !c.ready || c.busy {
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.pending = pendingPlay
	c.cmdGen++
	gen := c.cmdGen
	c.cancelReconnectLocked()
	c.armAckLocked(gen)
	c.mu.Unlock()

	c.emitStatus()

	// A live stream has no seek position: reset the queue before replaying
	// so a reconnect gets a fresh connection instead of stale buffered audio.
	ctx := context.Background()
	err := c.eng.ResetQueue(ctx)
	if err == nil {
		err = c.eng.AddTrack(ctx, c.streamTrack())
	}
	if err == nil {
		err = c.eng.Play(ctx)
	}
	if err != nil {
		zlog.Warn().Err(err).Msg("player: play command rejected")
		c.mu.Lock()
		c.finishCommandLocked(gen)
		c.failureLocked("play command rejected")
		c.mu.Unlock()
		c.emitStatus()
	}
}

// Stop halts playback unconditionally. Pause is never used for a live source:
// resuming a paused live stream would skip content or play stale buffer.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.closed || !c.ready || c.busy {
		c.mu.Unlock()
		return
	}
	c.busy = true
	c.pending = pendingStop
	c.cmdGen++
	gen := c.cmdGen
	c.desiredPlaying = false
	c.reconnectAttempt = 0
	c.bufferingSince = time.Time{}
	c.cancelReconnectLocked()
	c.cancelStallLocked()
	c.armAckLocked(gen)
	now := c.now()
	c.mu.Unlock()

	// Explicit stop invalidates the resume marker immediately
	if c.marker != nil {
		if err := c.marker.MarkStopped(now); err != nil {
			zlog.Debug().Err(err).Msg("player: persist stop marker failed")
		}
	}

	c.emitStatus()

	if err := c.eng.Stop(context.Background()); err != nil {
		zlog.Warn().Err(err).Msg("player: stop command rejected")
		c.mu.Lock()
		c.finishCommandLocked(gen)
		c.engineState = engine.StateStopped
		c.mu.Unlock()
		c.emitStatus()
	}
}

// Toggle stops when playing (or trying to play), otherwise plays. No-op while
// a command is in flight.
func (c *Controller) Toggle() {
	c.mu.Lock()
	if c.closed || c.busy {
		c.mu.Unlock()
		return
	}
	playing := c.desiredPlaying || c.engineState == engine.StatePlaying
	c.mu.Unlock()

	if playing {
		c.Stop()
	} else {
		c.Play()
	}
}

// UpdateNowPlaying refreshes the displayed track metadata without touching
// playback. Engine failures here are swallowed: metadata is cosmetic.
func (c *Controller) UpdateNowPlaying(np nowplaying.NowPlaying) {
	resolved := np.Resolve(c.cfg.StationName, c.cfg.OfflineArtworkURL)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.np = resolved
	c.mu.Unlock()

	md := engine.Metadata{
		Title:      resolved.Title,
		Artist:     resolved.Artist,
		ArtworkURL: resolved.ArtworkURL,
	}
	if err := c.eng.UpdateMetadata(context.Background(), md); err != nil {
		zlog.Debug().Err(err).Msg("player: metadata update failed")
	}

	c.emitStatus()
}

// IsPlaying reports whether the engine currently confirms playback.
func (c *Controller) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engineState == engine.StatePlaying
}

// IsBusy reports whether a play/stop command is in flight.
func (c *Controller) IsBusy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// WantsPlayback reports the desired-playing intent. It stays true across
// reconnect attempts and goes false on explicit stop or after giving up.
func (c *Controller) WantsPlayback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.desiredPlaying
}

// ReconnectAttempt returns the consecutive failed-reconnect counter.
func (c *Controller) ReconnectAttempt() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempt
}

// LastKnownGoodAt returns the time of the last confirmed Playing state, or
// the zero time if playback was never confirmed.
func (c *Controller) LastKnownGoodAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastKnownGoodAt
}

// Status returns a snapshot of the observable state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Close cancels outstanding timers, releases event subscriptions, and closes
// the status channel.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelReconnectLocked()
	c.cancelStallLocked()
	c.cancelAckLocked()
	tokens := c.tokens
	c.tokens = nil
	close(c.eventCh)
	c.mu.Unlock()

	for _, t := range tokens {
		c.eng.Events().Unsubscribe(t)
	}
}

func (c *Controller) streamTrack() engine.Track {
	return engine.Track{
		URL:        c.cfg.StreamURL,
		Title:      c.cfg.StationName,
		ArtworkURL: c.cfg.OfflineArtworkURL,
	}
}

// onStateEvent handles playback-state-changed events from the engine. Local
// state is overwritten by the most recent event, last-write-wins.
func (c *Controller) onStateEvent(e engine.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.engineState = e.State
	var markAt time.Time

	switch e.State {
	case engine.StatePlaying:
		if c.pending == pendingStop {
			// Stale confirm racing an in-flight stop; the stop's own
			// event clears the busy flag
			break
		}
		wasPlayCmd := c.pending == pendingPlay
		c.finishPendingLocked()
		c.reconnectAttempt = 0
		c.lastKnownGoodAt = c.now()
		c.bufferingSince = time.Time{}
		c.cancelStallLocked()
		c.cancelReconnectLocked()
		if wasPlayCmd || c.desiredPlaying {
			c.desiredPlaying = true
			markAt = c.lastKnownGoodAt
		}

	case engine.StateBuffering:
		if c.bufferingSince.IsZero() {
			c.bufferingSince = c.now()
		}
		if c.desiredPlaying {
			c.armStallLocked()
		}

	case engine.StateStopped, engine.StateIdle:
		if c.pending == pendingPlay {
			// The queue reset at the start of a play sequence passes
			// through stopped; not an acknowledgment
			break
		}
		wasStopCmd := c.pending == pendingStop
		c.finishPendingLocked()
		c.bufferingSince = time.Time{}
		if !wasStopCmd && c.desiredPlaying && c.reconnectCancel == nil {
			// The engine dropped the stream without an error event
			c.failureLocked("engine stopped unexpectedly")
		}

	case engine.StatePaused:
		zlog.Debug().Msg("player: engine reported paused, ignoring for live source")

	case engine.StateError:
		c.finishPendingLocked()
		c.bufferingSince = time.Time{}
		if c.reconnectCancel == nil {
			c.failureLocked("engine entered error state")
		}
	}
	c.mu.Unlock()

	if !markAt.IsZero() && c.marker != nil {
		if err := c.marker.MarkPlaying(markAt); err != nil {
			zlog.Debug().Err(err).Msg("player: persist play marker failed")
		}
	}

	c.emitStatus()
}

// onErrorEvent handles playback-error events from the engine.
func (c *Controller) onErrorEvent(e engine.Event) {
	zlog.Warn().Err(e.Err).Msg("player: engine playback error")

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.finishPendingLocked()
	c.bufferingSince = time.Time{}
	if c.reconnectCancel == nil {
		c.failureLocked("playback error")
	}
	c.mu.Unlock()

	c.emitStatus()
}

// failureLocked runs the reconnect policy. It only acts while playback is
// desired: an explicit user stop never schedules a retry.
func (c *Controller) failureLocked(reason string) {
	if !c.desiredPlaying {
		return
	}

	c.reconnectAttempt++
	if c.reconnectAttempt > c.cfg.MaxReconnectAttempts {
		zlog.Warn().Msgf("player: giving up after %d reconnect attempts: reason=%s",
			c.cfg.MaxReconnectAttempts, reason)
		c.desiredPlaying = false
		c.cancelStallLocked()
		c.cancelReconnectLocked()
		return
	}

	delay := c.cfg.Backoff.NextDelay(c.reconnectAttempt)
	zlog.Info().Msgf("player: scheduling reconnect: attempt=%d delay=%v reason=%s",
		c.reconnectAttempt, delay, reason)

	c.cancelReconnectLocked()
	c.reconnectCancel = c.schedule(delay, func() {
		c.mu.Lock()
		c.reconnectCancel = nil
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.Play()
	})
}

// armStallLocked starts the stall-detection poll chain if not already running.
func (c *Controller) armStallLocked() {
	if c.stallCancel != nil {
		return
	}
	c.stallCancel = c.schedule(c.cfg.StallPollInterval, c.pollStall)
}

// pollStall checks whether the engine has been buffering continuously for
// longer than the stall timeout, and promotes that to the failure path.
func (c *Controller) pollStall() {
	c.mu.Lock()
	c.stallCancel = nil
	if c.closed || !c.desiredPlaying {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	s, err := c.eng.State(context.Background())

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		zlog.Debug().Err(err).Msg("player: stall poll state query failed")
	} else {
		c.engineState = s
		if s == engine.StateBuffering {
			if c.bufferingSince.IsZero() {
				c.bufferingSince = c.now()
			}
			if c.now().Sub(c.bufferingSince) > c.cfg.StallTimeout {
				zlog.Warn().Msgf("player: stream stalled, buffering for over %v", c.cfg.StallTimeout)
				c.bufferingSince = time.Time{}
				c.failureLocked("stall")
				c.mu.Unlock()
				c.emitStatus()
				return
			}
		} else {
			c.bufferingSince = time.Time{}
		}
	}
	if c.desiredPlaying {
		c.armStallLocked()
	}
	c.mu.Unlock()
}

// armAckLocked guards against an engine that never responds to a command.
func (c *Controller) armAckLocked(gen int) {
	if c.cfg.AckTimeout < 0 {
		return
	}
	c.cancelAckLocked()
	c.ackCancel = c.schedule(c.cfg.AckTimeout, func() {
		c.mu.Lock()
		if c.closed || c.cmdGen != gen || c.pending == pendingNone {
			c.mu.Unlock()
			return
		}
		zlog.Warn().Msg("player: engine never acknowledged command, clearing busy")
		c.busy = false
		c.pending = pendingNone
		c.ackCancel = nil
		c.failureLocked("command unacknowledged")
		c.mu.Unlock()
		c.emitStatus()
	})
}

// finishPendingLocked clears the in-flight command, if any.
func (c *Controller) finishPendingLocked() {
	if c.pending == pendingNone {
		return
	}
	c.busy = false
	c.pending = pendingNone
	c.cancelAckLocked()
}

// finishCommandLocked clears the in-flight command only if it is still the
// one identified by gen.
func (c *Controller) finishCommandLocked(gen int) {
	if c.cmdGen == gen {
		c.finishPendingLocked()
	}
}

func (c *Controller) cancelReconnectLocked() {
	if c.reconnectCancel != nil {
		c.reconnectCancel()
		c.reconnectCancel = nil
	}
}

func (c *Controller) cancelStallLocked() {
	if c.stallCancel != nil {
		c.stallCancel()
		c.stallCancel = nil
	}
}

func (c *Controller) cancelAckLocked() {
	if c.ackCancel != nil {
		c.ackCancel()
		c.ackCancel = nil
	}
}

func (c *Controller) statusLocked() Status {
	return Status{
		Playing:          c.engineState == engine.StatePlaying,
		Busy:             c.busy,
		EngineState:      c.engineState.String(),
		ReconnectAttempt: c.reconnectAttempt,
		NowPlaying:       c.np,
		UpdatedAt:        c.now(),
	}
}

// emitStatus sends a snapshot without blocking; slow consumers drop updates.
func (c *Controller) emitStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.eventCh <- c.statusLocked():
	default:
	}
}
