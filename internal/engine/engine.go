// Package engine defines the contract between the playback controller and
// the underlying media engine.
package engine

import "context"

// State represents the playback state reported by the engine.
type State int

const (
	StateIdle      State = iota // Nothing loaded
	StateBuffering              // Connecting or waiting for the cache
	StatePlaying                // Audio is flowing
	StateStopped                // Playback explicitly stopped
	StatePaused                 // Paused (never requested for a live source)
	StateError                  // Engine-reported failure
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuffering:
		return "buffering"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Track is the single queue entry registered with the engine.
type Track struct {
	URL        string
	Title      string
	Artist     string
	ArtworkURL string
}

// Metadata is the displayed portion of the queued track. Updating it never
// alters playback.
type Metadata struct {
	Title      string
	Artist     string
	ArtworkURL string
}

// Engine is the opaque media engine driven by the playback controller.
// Commands are asynchronous: a nil return means the command was accepted,
// the outcome arrives later as a StateChanged or PlaybackError event.
type Engine interface {
	// Play starts playback of the queued track.
	Play(ctx context.Context) error
	// Stop halts playback and discards buffered audio.
	Stop(ctx context.Context) error
	// State reports the engine's current playback state.
	State(ctx context.Context) (State, error)
	// AddTrack registers the track as the sole queue entry.
	AddTrack(ctx context.Context, t Track) error
	// ResetQueue discards the queue and any buffered audio.
	ResetQueue(ctx context.Context) error
	// UpdateMetadata refreshes the queued track's displayed metadata.
	UpdateMetadata(ctx context.Context, m Metadata) error
	// Events returns the dispatcher the engine emits events on.
	Events() *Dispatcher
	// Close releases the engine.
	Close() error
}
