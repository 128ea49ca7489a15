// Package enginetest provides an in-memory media engine for tests and
// development. Commands succeed unless a failure is scripted, and engine
// events are injected manually.
package enginetest

import (
	"context"
	"sync"

	"github.com/eist-radio/streamd/internal/engine"
)

// Fake is a thread-safe in-memory media engine.
type Fake struct {
	mu         sync.Mutex
	dispatcher *engine.Dispatcher
	state      engine.State
	track      engine.Track
	hasTrack   bool
	metadata   engine.Metadata

	// Scripted failures
	playErr  error
	stopErr  error
	resetErr error
	addErr   error
	metaErr  error
	stateErr error

	// When set, Play/Stop immediately emit the corresponding state event,
	// mimicking an engine that confirms commands synchronously.
	autoConfirm bool

	playCalls  int
	stopCalls  int
	resetCalls int
	metaCalls  int
	closed     bool
}

// New creates a fake engine in the idle state.
func New() *Fake {
	return &Fake{
		dispatcher: engine.NewDispatcher(),
		state:      engine.StateIdle,
	}
}

// AutoConfirm makes Play/Stop emit their confirming state event inline.
func (f *Fake) AutoConfirm(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.autoConfirm = on
}

// FailPlay scripts the next Play calls to return err.
func (f *Fake) FailPlay(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playErr = err
}

// FailStop scripts the next Stop calls to return err.
func (f *Fake) FailStop(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopErr = err
}

// FailReset scripts the next ResetQueue calls to return err.
func (f *Fake) FailReset(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetErr = err
}

// FailMetadata scripts the next UpdateMetadata calls to return err.
func (f *Fake) FailMetadata(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaErr = err
}

// Play implements engine.Engine.
func (f *Fake) Play(ctx context.Context) error {
	f.mu.Lock()
	f.playCalls++
	if f.playErr != nil {
		err := f.playErr
		f.mu.Unlock()
		return err
	}
	confirm := f.autoConfirm
	f.mu.Unlock()

	if confirm {
		f.SetState(engine.StatePlaying)
	}
	return nil
}

// Stop implements engine.Engine.
func (f *Fake) Stop(ctx context.Context) error {
	f.mu.Lock()
	f.stopCalls++
	if f.stopErr != nil {
		err := f.stopErr
		f.mu.Unlock()
		return err
	}
	confirm := f.autoConfirm
	f.mu.Unlock()

	if confirm {
		f.SetState(engine.StateStopped)
	}
	return nil
}

// State implements engine.Engine.
func (f *Fake) State(ctx context.Context) (engine.State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return engine.StateError, f.stateErr
	}
	return f.state, nil
}

// AddTrack implements engine.Engine.
func (f *Fake) AddTrack(ctx context.Context, t engine.Track) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.track = t
	f.hasTrack = true
	return nil
}

// ResetQueue implements engine.Engine.
func (f *Fake) ResetQueue(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resetCalls++
	if f.resetErr != nil {
		return f.resetErr
	}
	f.hasTrack = false
	return nil
}

// UpdateMetadata implements engine.Engine.
func (f *Fake) UpdateMetadata(ctx context.Context, m engine.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	if f.metaErr != nil {
		return f.metaErr
	}
	f.metadata = m
	return nil
}

// Events implements engine.Engine.
func (f *Fake) Events() *engine.Dispatcher {
	return f.dispatcher
}

// Close implements engine.Engine.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// SetState records the state and publishes a StateChanged event.
func (f *Fake) SetState(s engine.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
	f.dispatcher.Publish(engine.Event{Kind: engine.EventStateChanged, State: s})
}

// EmitError publishes a PlaybackError event and moves the state to Error.
func (f *Fake) EmitError(err error) {
	f.mu.Lock()
	f.state = engine.StateError
	f.mu.Unlock()
	f.dispatcher.Publish(engine.Event{Kind: engine.EventPlaybackError, Err: err})
}

// EmitRemote publishes a RemoteCommand event.
func (f *Fake) EmitRemote(cmd engine.RemoteCommand) {
	f.dispatcher.Publish(engine.Event{Kind: engine.EventRemoteCommand, Command: cmd})
}

// EmitDuck publishes a Duck event.
func (f *Fake) EmitDuck(ducked bool) {
	f.dispatcher.Publish(engine.Event{Kind: engine.EventDuck, Ducked: ducked})
}

// Track returns the currently registered track.
func (f *Fake) Track() (engine.Track, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.track, f.hasTrack
}

// Metadata returns the last metadata update.
func (f *Fake) Metadata() engine.Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metadata
}

// PlayCalls returns the number of Play invocations.
func (f *Fake) PlayCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.playCalls
}

// StopCalls returns the number of Stop invocations.
func (f *Fake) StopCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

// ResetCalls returns the number of ResetQueue invocations.
func (f *Fake) ResetCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resetCalls
}

// MetadataCalls returns the number of UpdateMetadata invocations.
func (f *Fake) MetadataCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.metaCalls
}
