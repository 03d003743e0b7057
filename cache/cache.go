// Package cache holds the latest statistics snapshot for a dataset and keeps
// it fresh in the background.
//
// A Manager owns one Store and one refresh loop. Readers call Get, GetMetric
// and Info at any time; they never wait for a refresh except for the
// bootstrap case where no snapshot exists yet. Refreshes are started by the
// ticker, by ForceRefresh, or by Refresh, and at most one runs at a time.
package cache

import (
	"context"
	"time"
)

// State is the refresh state of a Manager.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StatePublishing State = "publishing"
	StateFailed     State = "failed"
)

// Trigger describes what started a refresh.
type Trigger string

const (
	TriggerTick      Trigger = "tick"
	TriggerForced    Trigger = "forced"
	TriggerFollowUp  Trigger = "follow_up"
	TriggerRequested Trigger = "requested"
)

// ForceResult is the immediate outcome of ForceRefresh.
type ForceResult string

const (
	// ForceStarted means a new refresh was started in the background.
	ForceStarted ForceResult = "started"
	// ForceQueued means a refresh was in flight and one follow-up refresh
	// has been scheduled after it.
	ForceQueued ForceResult = "queued"
	// ForceCoalesced means a follow-up refresh was already scheduled and
	// this request was merged into it.
	ForceCoalesced ForceResult = "coalesced"
	// ForceRejected means the manager has been stopped.
	ForceRejected ForceResult = "rejected"
)

// RefreshEvent describes one finished refresh attempt.
type RefreshEvent struct {
	Cache        string         `json:"cache"`
	RefreshID    string         `json:"refresh_id"`
	Trigger      Trigger        `json:"trigger"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	Attempts     int            `json:"attempts"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	Duration     time.Duration  `json:"duration"`
	RegionCount  int            `json:"region_count"`
	RecordCounts map[string]int `json:"record_counts,omitempty"`
	Degraded     []string       `json:"degraded,omitempty"`
}

// Listener is notified after every refresh attempt, successful or not.
// Listeners run on the refresh goroutine and must not block for long.
type Listener interface {
	OnRefresh(ctx context.Context, ev RefreshEvent)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, ev RefreshEvent)

// OnRefresh calls f(ctx, ev).
func (f ListenerFunc) OnRefresh(ctx context.Context, ev RefreshEvent) {
	f(ctx, ev)
}
