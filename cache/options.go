package cache

import (
	"github.com/benbjohnson/clock"
	"github.com/dailyyoga/regstats/metrics"
	"github.com/dailyyoga/regstats/shadow"
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock driving the refresh ticker and retry
// delays.
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) {
		if clk != nil {
			m.clk = clk
		}
	}
}

// WithShadow persists every published snapshot and restores it on Start.
func WithShadow(s shadow.Shadow) Option {
	return func(m *Manager) {
		m.shadow = s
	}
}

// WithCollector records refresh metrics.
func WithCollector(c metrics.Collector) Option {
	return func(m *Manager) {
		if c != nil {
			m.collector = c
		}
	}
}

// WithListener adds listeners notified after each refresh attempt.
func WithListener(ls ...Listener) Option {
	return func(m *Manager) {
		for _, l := range ls {
			if l != nil {
				m.listeners = append(m.listeners, l)
			}
		}
	}
}

// WithStore uses s instead of a fresh Store.
func WithStore(s *Store) Option {
	return func(m *Manager) {
		if s != nil {
			m.store = s
		}
	}
}
