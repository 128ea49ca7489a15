// Package mpv implements the media engine contract on top of an mpv
// subprocess driven over its JSON IPC socket. The process runs in idle mode
// and is supervised: if it dies it is restarted with capped backoff, and the
// controller sees the death as a playback error.
package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/engine"
)

const (
	defaultBinary    = "mpv"
	commandTimeout   = 5 * time.Second
	dialRetryDelay   = 100 * time.Millisecond
	dialTimeout      = 5 * time.Second
	maxFastFails     = 5
	fastFailWindow   = 5 * time.Second
	restartBackoff   = 500 * time.Millisecond
	maxRestartDelay  = 30 * time.Second
	backoffResetTime = 30 * time.Second
)

// Config holds mpv engine settings, decoded from the engine settings map.
type Config struct {
	Binary      string `mapstructure:"binary"`
	SocketPath  string `mapstructure:"socket_path"`
	AudioDevice string `mapstructure:"audio_device"`
	CacheSecs   int    `mapstructure:"cache_secs"`
}

// Engine drives a supervised mpv subprocess.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	dispatcher *engine.Dispatcher

	track    engine.Track
	hasTrack bool

	conn    net.Conn
	nextID  int
	pending map[int]chan response

	props map[string]any
	state engine.State

	closed  bool
	stopSup chan struct{}
	supDone chan struct{}
}

type request struct {
	Command   []any `json:"command"`
	RequestID int   `json:"request_id"`
}

type response struct {
	RequestID int             `json:"request_id"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

// New creates the engine and starts the supervised mpv process.
func New(cfg Config) (*Engine, error) {
	if cfg.Binary == "" {
		cfg.Binary = defaultBinary
	}
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(os.TempDir(), "streamd-mpv.sock")
	}
	if cfg.CacheSecs == 0 {
		cfg.CacheSecs = 10
	}

	e := &Engine{
		cfg:        cfg,
		dispatcher: engine.NewDispatcher(),
		pending:    make(map[int]chan response),
		props:      make(map[string]any),
		state:      engine.StateIdle,
		stopSup:    make(chan struct{}),
		supDone:    make(chan struct{}),
	}

	go e.supervise()
	return e, nil
}

// Play implements engine.Engine.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	track := e.track
	hasTrack := e.hasTrack
	e.mu.Unlock()

	if !hasTrack {
		return errors.New("mpv: no track registered")
	}
	if err := e.command(ctx, "loadfile", track.URL, "replace"); err != nil {
		return err
	}
	return e.command(ctx, "set_property", "pause", false)
}

// Stop implements engine.Engine. mpv's stop discards the demuxer cache, so
// buffered audio never survives into the next play.
func (e *Engine) Stop(ctx context.Context) error {
	return e.command(ctx, "stop")
}

// State implements engine.Engine.
func (e *Engine) State(ctx context.Context) (engine.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return engine.StateError, errors.New("mpv: not connected")
	}
	return e.state, nil
}

// AddTrack implements engine.Engine.
func (e *Engine) AddTrack(ctx context.Context, t engine.Track) error {
	e.mu.Lock()
	e.track = t
	e.hasTrack = true
	e.mu.Unlock()
	return nil
}

// ResetQueue implements engine.Engine.
func (e *Engine) ResetQueue(ctx context.Context) error {
	e.mu.Lock()
	e.hasTrack = false
	e.mu.Unlock()
	return e.command(ctx, "stop")
}

// UpdateMetadata implements engine.Engine.
func (e *Engine) UpdateMetadata(ctx context.Context, m engine.Metadata) error {
	title := m.Title
	if m.Artist != "" {
		title = m.Title + " — " + m.Artist
	}
	return e.command(ctx, "set_property", "force-media-title", title)
}

// Events implements engine.Engine.
func (e *Engine) Events() *engine.Dispatcher {
	return e.dispatcher
}

// Close shuts down the supervisor and the mpv process.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	conn := e.conn
	e.mu.Unlock()

	close(e.stopSup)
	if conn != nil {
		_ = conn.Close()
	}
	<-e.supDone
	return nil
}

// command sends an IPC command and waits for the response.
func (e *Engine) command(ctx context.Context, args ...any) error {
	e.mu.Lock()
	if e.conn == nil {
		e.mu.Unlock()
		return errors.New("mpv: not connected")
	}
	e.nextID++
	id := e.nextID
	ch := make(chan response, 1)
	e.pending[id] = ch
	conn := e.conn
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
	}()

	payload, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return errors.Wrap(err, "mpv: encode command")
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		return errors.Wrap(err, "mpv: write command")
	}

	timer := time.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" && resp.Error != "success" {
			return errors.Newf("mpv: command failed: %s", resp.Error)
		}
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "mpv: command canceled")
	case <-timer.C:
		return errors.New("mpv: command timed out")
	}
}

// supervise runs the mpv process, restarting it with capped backoff. A fast
// exit counts toward the fail limit; running long enough resets the backoff.
func (e *Engine) supervise() {
	defer close(e.supDone)

	backoff := restartBackoff
	failCount := 0

	for {
		select {
		case <-e.stopSup:
			return
		default:
		}

		if failCount >= maxFastFails {
			zlog.Error().Msgf("mpv: giving up after %d fast failures", failCount)
			e.dispatcher.Publish(engine.Event{
				Kind: engine.EventPlaybackError,
				Err:  errors.New("mpv: process keeps dying"),
			})
			return
		}

		started := time.Now()
		err := e.runOnce()

		e.mu.Lock()
		closed := e.closed
		e.conn = nil
		changed := e.setStateLocked(engine.StateError)
		e.mu.Unlock()

		if closed {
			return
		}
		if changed {
			e.dispatcher.Publish(engine.Event{Kind: engine.EventStateChanged, State: engine.StateError})
		}

		zlog.Warn().Err(err).Msg("mpv: process exited, restarting")
		e.dispatcher.Publish(engine.Event{
			Kind: engine.EventPlaybackError,
			Err:  errors.Wrap(err, "mpv process exited"),
		})

		if time.Since(started) < fastFailWindow {
			failCount++
			backoff *= 2
			if backoff > maxRestartDelay {
				backoff = maxRestartDelay
			}
		} else {
			failCount = 0
			backoff = restartBackoff
		}

		select {
		case <-e.stopSup:
			return
		case <-time.After(backoff):
		}
	}
}

// runOnce starts mpv, connects to its socket, and pumps IPC messages until
// the process or connection dies.
func (e *Engine) runOnce() error {
	_ = os.Remove(e.cfg.SocketPath)

	args := []string{
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--input-ipc-server=" + e.cfg.SocketPath,
		"--cache=yes",
		"--cache-secs=" + strconv.Itoa(e.cfg.CacheSecs),
	}
	if e.cfg.AudioDevice != "" {
		args = append(args, "--audio-device="+e.cfg.AudioDevice)
	}

	cmd := exec.Command(e.cfg.Binary, args...)
	if err := cmd.Start(); err != nil {
		return errors.Wrap(err, "mpv: start process")
	}
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	conn, err := e.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	e.mu.Lock()
	e.conn = conn
	changed := e.setStateLocked(engine.StateIdle)
	e.mu.Unlock()
	if changed {
		e.dispatcher.Publish(engine.Event{Kind: engine.EventStateChanged, State: engine.StateIdle})
	}

	if err := e.observeProperties(conn); err != nil {
		return err
	}

	return e.readLoop(conn)
}

func (e *Engine) dial() (net.Conn, error) {
	deadline := time.Now().Add(dialTimeout)
	for {
		conn, err := net.Dial("unix", e.cfg.SocketPath)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Wrap(err, "mpv: socket dial timed out")
		}
		select {
		case <-e.stopSup:
			return nil, errors.New("mpv: closed while dialing")
		case <-time.After(dialRetryDelay):
		}
	}
}

func (e *Engine) observeProperties(conn net.Conn) error {
	for i, prop := range []string{"core-idle", "paused-for-cache", "idle-active", "pause"} {
		payload, err := json.Marshal(request{Command: []any{"observe_property", i + 1, prop}})
		if err != nil {
			return errors.Wrap(err, "mpv: encode observe")
		}
		payload = append(payload, '\n')
		if _, err := conn.Write(payload); err != nil {
			return errors.Wrap(err, "mpv: write observe")
		}
	}
	return nil
}

func (e *Engine) readLoop(conn net.Conn) error {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	for scanner.Scan() {
		var msg struct {
			RequestID int             `json:"request_id"`
			Error     string          `json:"error"`
			Event     string          `json:"event"`
			Name      string          `json:"name"`
			Data      json.RawMessage `json:"data"`
			Reason    string          `json:"reason"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			zlog.Debug().Err(err).Msg("mpv: unparseable IPC message")
			continue
		}

		if msg.RequestID != 0 {
			e.mu.Lock()
			ch := e.pending[msg.RequestID]
			e.mu.Unlock()
			if ch != nil {
				ch <- response{RequestID: msg.RequestID, Error: msg.Error, Data: msg.Data}
			}
			continue
		}

		switch msg.Event {
		case "property-change":
			var value any
			_ = json.Unmarshal(msg.Data, &value)
			e.mu.Lock()
			e.props[msg.Name] = value
			next := DeriveState(e.props)
			changed := e.setStateLocked(next)
			e.mu.Unlock()
			if changed {
				e.dispatcher.Publish(engine.Event{Kind: engine.EventStateChanged, State: next})
			}

		case "end-file":
			if msg.Reason == "error" {
				e.dispatcher.Publish(engine.Event{
					Kind: engine.EventPlaybackError,
					Err:  errors.New("mpv: stream ended with error"),
				})
			}
		}
	}
	return errors.Wrap(scanner.Err(), "mpv: ipc connection lost")
}

// setStateLocked records the state and reports whether it changed. Callers
// publish the change event after releasing the lock so events stay ordered
// and handlers may call back into the engine.
func (e *Engine) setStateLocked(s engine.State) bool {
	if e.state == s {
		return false
	}
	e.state = s
	return true
}

// DeriveState maps observed mpv properties onto the engine state enum.
func DeriveState(props map[string]any) engine.State {
	if boolProp(props, "idle-active") {
		return engine.StateStopped
	}
	if boolProp(props, "paused-for-cache") {
		return engine.StateBuffering
	}
	if boolProp(props, "pause") {
		return engine.StatePaused
	}
	if boolProp(props, "core-idle") {
		// Not idle-active, not paused: track is loading
		return engine.StateBuffering
	}
	return engine.StatePlaying
}

func boolProp(props map[string]any, name string) bool {
	v, ok := props[name].(bool)
	return ok && v
}

