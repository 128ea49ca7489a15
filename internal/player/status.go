package player

import (
	"time"

	"github.com/eist-radio/streamd/internal/domain/nowplaying"
)

// Status is a snapshot of the controller's observable state. It is what the
// control surface reads; callers never see engine errors directly.
type Status struct {
	Playing          bool                  `json:"playing"`
	Busy             bool                  `json:"busy"`
	EngineState      string                `json:"engine_state"`
	ReconnectAttempt int                   `json:"reconnect_attempt"`
	NowPlaying       nowplaying.NowPlaying `json:"now_playing"`
	UpdatedAt        time.Time             `json:"updated_at"`
}
