package cache

import "time"

// Info describes a Manager for status endpoints.
type Info struct {
	Name                   string         `json:"name"`
	State                  State          `json:"state"`
	Refreshing             bool           `json:"refreshing"`
	Pending                bool           `json:"pending"`
	HasData                bool           `json:"has_data"`
	LastRefreshAt          *time.Time     `json:"last_refresh_at"`
	NextRefreshAt          *time.Time     `json:"next_refresh_at"`
	LastAttemptAt          *time.Time     `json:"last_attempt_at"`
	GeneratedAt            *time.Time     `json:"generated_at"`
	RefreshIntervalSeconds int            `json:"refresh_interval_seconds"`
	RegionCount            int            `json:"region_count"`
	RecordCounts           map[string]int `json:"record_counts"`
	Degraded               []string       `json:"degraded,omitempty"`
	LastError              string         `json:"last_error,omitempty"`
	ConsecutiveFailures    int            `json:"consecutive_failures"`
}

// Info returns the manager's current state. It never blocks on a refresh.
func (m *Manager) Info() Info {
	view := m.store.View()

	m.mu.Lock()
	info := Info{
		Name:                   m.name,
		State:                  m.state,
		Refreshing:             m.inflight != nil,
		Pending:                m.pending,
		LastAttemptAt:          timePtr(m.lastAttemptAt),
		RefreshIntervalSeconds: m.cfg.RefreshIntervalSeconds,
		ConsecutiveFailures:    m.consecutiveFailures,
	}
	if m.lastErr != nil {
		info.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()

	info.LastRefreshAt = timePtr(view.LastRefreshAt)
	info.NextRefreshAt = timePtr(view.NextRefreshAt)
	if s := view.Snapshot; s != nil {
		info.HasData = true
		info.GeneratedAt = timePtr(s.GeneratedAt)
		info.RegionCount = s.RegionCount()
		info.RecordCounts = s.RecordCounts()
		info.Degraded = s.Degraded
	} else {
		info.RecordCounts = map[string]int{}
	}
	return info
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
