package engine

import (
	"sync"

	"github.com/google/uuid"
)

// EventKind represents an engine event kind.
type EventKind int

const (
	EventStateChanged  EventKind = iota // Playback state transition
	EventPlaybackError                  // Engine-reported playback failure
	EventRemoteCommand                  // Lock screen / head unit command
	EventDuck                           // Audio focus lost or regained
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state_changed"
	case EventPlaybackError:
		return "playback_error"
	case EventRemoteCommand:
		return "remote_command"
	case EventDuck:
		return "duck"
	default:
		return "unknown"
	}
}

// RemoteCommand represents a transport command originating outside the app
// (lock screen, Bluetooth, car head unit).
type RemoteCommand int

const (
	RemotePlay RemoteCommand = iota
	RemotePause
	RemoteStop
	RemoteNext
	RemotePrevious
)

// String returns the string representation of the remote command.
func (c RemoteCommand) String() string {
	switch c {
	case RemotePlay:
		return "play"
	case RemotePause:
		return "pause"
	case RemoteStop:
		return "stop"
	case RemoteNext:
		return "next"
	case RemotePrevious:
		return "previous"
	default:
		return "unknown"
	}
}

// Event represents an engine event. Only the fields relevant to Kind are set.
type Event struct {
	Kind    EventKind
	State   State         // EventStateChanged
	Err     error         // EventPlaybackError
	Command RemoteCommand // EventRemoteCommand
	Ducked  bool          // EventDuck: true on focus loss, false on restore
}

// Handler receives engine events.
type Handler func(Event)

// Dispatcher fans engine events out to registered handlers. Handlers are
// invoked synchronously on the publishing goroutine, so they must not block.
type Dispatcher struct {
	mu     sync.RWMutex
	subs   map[EventKind]map[string]Handler
	tokens map[string]EventKind
}

// NewDispatcher creates a new event dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		subs:   make(map[EventKind]map[string]Handler),
		tokens: make(map[string]EventKind),
	}
}

// Subscribe registers a handler for the given event kind and returns an
// unsubscribe token.
func (d *Dispatcher) Subscribe(kind EventKind, h Handler) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	token := uuid.New().String()
	if d.subs[kind] == nil {
		d.subs[kind] = make(map[string]Handler)
	}
	d.subs[kind][token] = h
	d.tokens[token] = kind
	return token
}

// Unsubscribe removes the handler registered under the token.
func (d *Dispatcher) Unsubscribe(token string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	kind, ok := d.tokens[token]
	if !ok {
		return
	}
	delete(d.tokens, token)
	delete(d.subs[kind], token)
}

// Publish delivers the event to all handlers registered for its kind.
func (d *Dispatcher) Publish(e Event) {
	d.mu.RLock()
	handlers := make([]Handler, 0, len(d.subs[e.Kind]))
	for _, h := range d.subs[e.Kind] {
		handlers = append(handlers, h)
	}
	d.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}

// SubscriberCount returns the number of handlers registered for the kind.
func (d *Dispatcher) SubscriberCount(kind EventKind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[kind])
}
