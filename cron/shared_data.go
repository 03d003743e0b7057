package cron

import (
	"context"
	"sync"
)

type contextKey string

const sharedDataKey contextKey = "cron:shared_data"

// SharedData carries values between the tasks of one chain run
type SharedData struct {
	data sync.Map
}

// WithSharedData returns a context carrying s
func WithSharedData(ctx context.Context, s *SharedData) context.Context {
	return context.WithValue(ctx, sharedDataKey, s)
}

// GetSharedData retrieves SharedData from the context
// Returns nil if the context does not contain SharedData
func GetSharedData(ctx context.Context) *SharedData {
	if val, ok := ctx.Value(sharedDataKey).(*SharedData); ok {
		return val
	}
	return nil
}

// Set stores a key-value pair
func (s *SharedData) Set(key string, value any) {
	s.data.Store(key, value)
}

// Get retrieves a value by key
func (s *SharedData) Get(key string) (any, bool) {
	return s.data.Load(key)
}

// Delete removes a key
func (s *SharedData) Delete(key string) {
	s.data.Delete(key)
}

// Range iterates over all key-value pairs until f returns false
func (s *SharedData) Range(f func(key string, value any) bool) {
	s.data.Range(func(k, v any) bool {
		return f(k.(string), v)
	})
}

// Load returns the value stored under key in the chain's SharedData when it
// has type T. It reports false when ctx has no SharedData, the key is
// missing or the value has another type.
func Load[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	s := GetSharedData(ctx)
	if s == nil {
		return zero, false
	}
	v, ok := s.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
