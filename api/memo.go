package api

import (
	"fmt"
	"sync"

	"github.com/dailyyoga/regstats/snapshot"
	"golang.org/x/sync/singleflight"
)

type memoEntry struct {
	snap *snapshot.Snapshot
	body []byte
}

// payloadMemo keeps one encoded response body per key for the snapshot it
// was built from. Concurrent misses for the same snapshot share one encode.
type payloadMemo struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]memoEntry
}

func newPayloadMemo() *payloadMemo {
	return &payloadMemo{entries: make(map[string]memoEntry)}
}

func (m *payloadMemo) lookup(key string, snap *snapshot.Snapshot) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key]
	if !ok || e.snap != snap {
		return nil, false
	}
	return e.body, true
}

// get returns the body for key built from snap, calling build at most once
// per snapshot.
func (m *payloadMemo) get(key string, snap *snapshot.Snapshot, build func() ([]byte, error)) ([]byte, error) {
	if body, ok := m.lookup(key, snap); ok {
		return body, nil
	}

	v, err, _ := m.group.Do(fmt.Sprintf("%s/%p", key, snap), func() (any, error) {
		if body, ok := m.lookup(key, snap); ok {
			return body, nil
		}
		body, err := build()
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.entries[key] = memoEntry{snap: snap, body: body}
		m.mu.Unlock()
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
