package ws

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Supervisor probes every open connection on a fixed cadence and enforces a
// hard ceiling on total uptime of the real-time layer. It is process-global:
// it does not know or care which session a connection belongs to.
type Supervisor struct {
	hub       *Hub
	interval  time.Duration
	maxUptime time.Duration
	logger    zerolog.Logger
}

// NewSupervisor creates a supervisor sweeping hub every interval. Once
// maxUptime has elapsed it closes every connection and stops for good.
func NewSupervisor(hub *Hub, interval, maxUptime time.Duration, logger zerolog.Logger) *Supervisor {
	return &Supervisor{
		hub:       hub,
		interval:  interval,
		maxUptime: maxUptime,
		logger:    logger,
	}
}

// Run blocks until ctx is canceled or the uptime ceiling is reached.
//
// Each cycle a connection that never confirmed liveness since the previous
// probe is terminated; every survivor is marked unconfirmed and probed
// again. A peer therefore has a full interval to answer before it is
// considered dead, and an unresponsive one is gone after at most two
// cycles.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			elapsed += s.interval
			if elapsed >= s.maxUptime {
				s.logger.Warn().
					Dur("max_uptime", s.maxUptime).
					Int("open_connections", s.hub.Len()).
					Msg("uptime ceiling reached, shutting down real-time layer")
				s.hub.CloseAll()
				return nil
			}
			s.sweep()
		}
	}
}

func (s *Supervisor) sweep() {
	var probed, closed int
	s.hub.ForEach(func(c *Connection) {
		if !c.Sweep() {
			c.Close()
			s.hub.Unregister(c)
			closed++
			return
		}
		c.Ping()
		probed++
	})

	if closed > 0 {
		s.logger.Info().Int("closed", closed).Int("probed", probed).Msg("liveness sweep terminated dead connections")
	}
}
