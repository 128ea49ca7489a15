package station

import (
	"context"
	"time"

	zlog "github.com/rs/zerolog/log"

	"github.com/eist-radio/streamd/internal/domain/nowplaying"
)

// Source fetches now-playing metadata. Implemented by *Client.
type Source interface {
	Fetch(ctx context.Context) (nowplaying.NowPlaying, error)
}

// Poller periodically fetches now-playing metadata and hands it to a sink.
// Fetch failures are logged and skipped: metadata is cosmetic.
type Poller struct {
	source   Source
	interval time.Duration
	sink     func(nowplaying.NowPlaying)

	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller feeding sink every interval.
func NewPoller(source Source, interval time.Duration, sink func(nowplaying.NowPlaying)) *Poller {
	return &Poller{
		source:   source,
		interval: interval,
		sink:     sink,
	}
}

// Start launches the poll goroutine. The first fetch happens immediately.
func (p *Poller) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		p.poll(ctx)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx)
			}
		}
	}()
}

// Stop cancels polling and waits for the goroutine to exit.
func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
}

func (p *Poller) poll(ctx context.Context) {
	np, err := p.source.Fetch(ctx)
	if err != nil {
		if ctx.Err() == nil {
			zlog.Debug().Err(err).Msg("station: now-playing fetch failed")
		}
		return
	}
	p.sink(np)
}
