package feed

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor periodically re-invokes the supervisor's idempotent Connect. It is
// the only path back to a live connection after MaxReconnectExceeded.
type Monitor struct {
	supervisor *Supervisor
	interval   time.Duration
	logger     *zap.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewMonitor(s *Supervisor, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Monitor{
		supervisor: s,
		interval:   interval,
		logger:     logger,
		stop:       make(chan struct{}),
	}
}

// Start launches the liveness check loop.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-m.stop:
				return
			case <-ticker.C:
				if m.supervisor.State() != StateDisconnected {
					continue
				}
				m.logger.Info("liveness monitor reconnecting")
				if err := m.supervisor.Connect(); err != nil {
					m.logger.Warn("liveness reconnect failed", zap.Error(err))
				}
			}
		}
	}()
}

// Stop ends the loop; safe to call more than once. The supervisor itself is
// left untouched.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}
