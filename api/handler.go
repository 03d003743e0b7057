package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dailyyoga/regstats/cache"
	"github.com/dailyyoga/regstats/logger"
	"github.com/dailyyoga/regstats/snapshot"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Cache is the read side of a cache.Manager used by the HTTP layer.
type Cache interface {
	Name() string
	Get(ctx context.Context) (*snapshot.Snapshot, error)
	GetMetric(ctx context.Context, metric, region string) (any, bool, error)
	Info() cache.Info
	ForceRefresh() cache.ForceResult
}

var _ Cache = (*cache.Manager)(nil)

// Mount serves one cache under Prefix, e.g. "/api" or "/api/regional".
type Mount struct {
	Prefix string
	Cache  Cache
}

func (m Mount) validate() error {
	if m.Cache == nil {
		return ErrInvalidMount(m.Prefix, "cache is nil")
	}
	if !strings.HasPrefix(m.Prefix, "/") || strings.HasSuffix(m.Prefix, "/") {
		return ErrInvalidMount(m.Prefix, "prefix must start and must not end with '/'")
	}
	return nil
}

// Summary is the body of GET /data/summary.
type Summary struct {
	Summary         snapshot.Summary             `json:"summary"`
	TopRankings     map[string][]snapshot.Ranked `json:"top_rankings"`
	MigrationTopIn  []snapshot.Ranked            `json:"migration_top_in"`
	MigrationTopOut []snapshot.Ranked            `json:"migration_top_out"`
	Regions         []string                     `json:"regions"`
	GeneratedAt     time.Time                    `json:"generated_at"`
}

// UpdateResult is the body of POST /cache/update.
type UpdateResult struct {
	Result cache.ForceResult `json:"result"`
	Info   cache.Info        `json:"info"`
}

type cacheHandler struct {
	cache   Cache
	log     logger.Logger
	limiter *rate.Limiter
	memo    *payloadMemo
}

func newCacheHandler(c Cache, log logger.Logger, cfg *Config) *cacheHandler {
	return &cacheHandler{
		cache:   c,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RefreshRate), cfg.RefreshBurst),
		memo:    newPayloadMemo(),
	}
}

func (h *cacheHandler) register(mux *http.ServeMux, prefix string) {
	mux.HandleFunc("GET "+prefix+"/cache/info", h.info)
	mux.HandleFunc("POST "+prefix+"/cache/update", h.update)
	mux.HandleFunc("GET "+prefix+"/data/all", h.all)
	mux.HandleFunc("GET "+prefix+"/data/summary", h.summary)
	mux.HandleFunc("GET "+prefix+"/data/{metric}", h.metric)
	mux.HandleFunc("GET "+prefix+"/provinces", h.provinces)
}

func (h *cacheHandler) info(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, h.log, h.cache.Info())
}

// update triggers an asynchronous refresh and returns immediately.
func (h *cacheHandler) update(w http.ResponseWriter, _ *http.Request) {
	if !h.limiter.Allow() {
		writeError(w, h.log, http.StatusTooManyRequests, "refresh requested too often, retry later")
		return
	}
	res := h.cache.ForceRefresh()
	if res == cache.ForceRejected {
		writeError(w, h.log, http.StatusServiceUnavailable, "cache is shutting down")
		return
	}
	h.log.Info("refresh requested over http",
		zap.String("cache", h.cache.Name()),
		zap.String("result", string(res)))
	writeJSON(w, h.log, http.StatusAccepted, "refresh "+string(res), UpdateResult{
		Result: res,
		Info:   h.cache.Info(),
	})
}

func (h *cacheHandler) all(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	body, err := h.memo.get("all", snap, func() ([]byte, error) {
		return encode(http.StatusOK, messageSuccess, snap)
	})
	if err != nil {
		h.log.Error("failed to encode snapshot", zap.String("cache", h.cache.Name()), zap.Error(err))
		writeError(w, h.log, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}
	writeBody(w, http.StatusOK, body)
}

func (h *cacheHandler) summary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	body, err := h.memo.get("summary", snap, func() ([]byte, error) {
		d := snap.Derived
		return encode(http.StatusOK, messageSuccess, Summary{
			Summary:         d.Summary,
			TopRankings:     d.TopRankings,
			MigrationTopIn:  d.MigrationTopIn,
			MigrationTopOut: d.MigrationTopOut,
			Regions:         d.Regions,
			GeneratedAt:     snap.GeneratedAt,
		})
	})
	if err != nil {
		h.log.Error("failed to encode summary", zap.String("cache", h.cache.Name()), zap.Error(err))
		writeError(w, h.log, http.StatusInternalServerError, "failed to encode summary")
		return
	}
	writeBody(w, http.StatusOK, body)
}

func (h *cacheHandler) provinces(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.snapshot(w, r)
	if !ok {
		return
	}
	regions := snap.Derived.Regions
	if regions == nil {
		regions = []string{}
	}
	writeOK(w, h.log, regions)
}

func (h *cacheHandler) metric(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("metric")
	region := strings.TrimSpace(r.URL.Query().Get("region"))
	v, found, err := h.cache.GetMetric(r.Context(), name, region)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !found {
		if region != "" {
			writeError(w, h.log, http.StatusNotFound, "no data for metric "+name+" in region "+region)
			return
		}
		writeError(w, h.log, http.StatusNotFound, "unknown metric "+name)
		return
	}
	writeOK(w, h.log, v)
}

func (h *cacheHandler) snapshot(w http.ResponseWriter, r *http.Request) (*snapshot.Snapshot, bool) {
	snap, err := h.cache.Get(r.Context())
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return snap, true
}

// fail maps a cache read error to a response. Only an empty cache is
// reported as unavailable; refresh errors never reach readers.
func (h *cacheHandler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cache.ErrCacheEmpty):
		h.log.Warn("cache has no data", zap.String("cache", h.cache.Name()), zap.Error(err))
		writeError(w, h.log, http.StatusServiceUnavailable, "statistics are not available yet")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, h.log, http.StatusServiceUnavailable, "request cancelled")
	default:
		h.log.Error("cache read failed", zap.String("cache", h.cache.Name()), zap.Error(err))
		writeError(w, h.log, http.StatusInternalServerError, "failed to read statistics")
	}
}
