// Package factory builds media engines from configuration.
package factory

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/engine"
	"github.com/eist-radio/streamd/internal/engine/enginetest"
	"github.com/eist-radio/streamd/internal/engine/mpv"
)

// New creates an engine of the given type from its settings map.
//
// The "fake" engine plays nothing and confirms every command immediately. It
// exists so the daemon can run on machines without mpv, for development.
func New(engineType string, settings map[string]any) (engine.Engine, error) {
	zlog.Debug().Msgf("creating engine: type=%s settings=%+v", engineType, settings)

	switch engineType {
	case "mpv":
		var cfg mpv.Config
		if err := mapstructure.Decode(settings, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to decode mpv settings")
		}
		return mpv.New(cfg)

	case "fake":
		fake := enginetest.New()
		fake.AutoConfirm(true)
		return fake, nil

	default:
		return nil, errors.Newf("unsupported engine type: %s", engineType)
	}
}
