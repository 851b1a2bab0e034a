package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/cityops-feeds-service/internal/cluster"
	"github.com/couchcryptid/cityops-feeds-service/internal/domain"
)

type feedView struct {
	Feed        domain.FeedID   `json:"feed"`
	Shape       domain.Shape    `json:"shape"`
	RecordCount int             `json:"record_count"`
	ErrorKind   string          `json:"error_kind,omitempty"`
	Error       string          `json:"error,omitempty"`
	Records     []domain.Record `json:"records"`
}

type snapshotView struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Stage     int           `json:"stage"`
	Locale    domain.Locale `json:"locale"`
	Empty     bool          `json:"empty"`
	Feeds     []feedView    `json:"feeds"`
}

type sceneView struct {
	Scene       domain.Scene `json:"scene"`
	RainLevel   float64      `json:"rain_level"`
	Night       bool         `json:"night"`
	EvaluatedAt time.Time    `json:"evaluated_at"`
	FetchedAt   time.Time    `json:"fetched_at"`
}

type clustersView struct {
	Feed  domain.FeedID                     `json:"feed"`
	Zoom  float64                           `json:"zoom"`
	Items []cluster.Item[domain.Plottable] `json:"items"`
}

// current writes 503 and returns nil until the first snapshot exists.
func (s *Server) current(w http.ResponseWriter) *domain.Snapshot {
	snap := s.svc.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no snapshot yet")
	}
	return snap
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}

	view := snapshotView{
		FetchedAt: snap.FetchedAt(),
		Stage:     snap.Stage(),
		Locale:    s.svc.Locale(),
		Empty:     snap.Empty(),
	}
	for _, id := range snap.Feeds() {
		res, _ := snap.Result(id)
		fv := feedView{Feed: id, Shape: res.Shape, RecordCount: len(res.Records), Records: res.Records}
		if fv.Records == nil {
			fv.Records = []domain.Record{}
		}
		if res.Err != nil {
			fv.ErrorKind = domain.KindOf(res.Err).String()
			fv.Error = res.Err.Error()
		}
		view.Feeds = append(view.Feeds, fv)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleScene(w http.ResponseWriter, _ *http.Request) {
	snap := s.current(w)
	if snap == nil {
		return
	}
	now := s.clock.Now().In(s.location)
	writeJSON(w, http.StatusOK, sceneView{
		Scene:       domain.ClassifyScene(snap, now),
		RainLevel:   domain.RainLevel(snap.RainGauges()),
		Night:       domain.IsNight(snap, now),
		EvaluatedAt: now,
		FetchedAt:   snap.FetchedAt(),
	})
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	feed := domain.FeedID(q.Get("feed"))
	if feed == "" {
		writeError(w, http.StatusBadRequest, "feed is required")
		return
	}

	var vp cluster.Viewport
	for _, p := range []struct {
		name string
		dst  *float64
	}{
		{"lat", &vp.Center.Lat},
		{"lon", &vp.Center.Lon},
		{"span_lat", &vp.SpanLat},
		{"span_lon", &vp.SpanLon},
	} {
		v, err := strconv.ParseFloat(q.Get(p.name), 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+p.name)
			return
		}
		*p.dst = v
	}
	if vp.SpanLat <= 0 || vp.SpanLon <= 0 {
		writeError(w, http.StatusBadRequest, "span_lat and span_lon must be positive")
		return
	}

	snap := s.current(w)
	if snap == nil {
		return
	}
	if _, ok := snap.Result(feed); !ok {
		writeError(w, http.StatusNotFound, "unknown feed "+string(feed))
		return
	}

	items := cluster.Cluster(cluster.Points(snap.Plottable(feed)), vp)
	if items == nil {
		items = []cluster.Item[domain.Plottable]{}
	}
	writeJSON(w, http.StatusOK, clustersView{Feed: feed, Zoom: vp.Zoom(), Items: items})
}

func (s *Server) handleReload(w http.ResponseWriter, _ *http.Request) {
	started := s.svc.FetchIfNeeded()
	writeJSON(w, http.StatusAccepted, map[string]bool{"started": started})
}

func (s *Server) handleActive(w http.ResponseWriter, _ *http.Request) {
	s.svc.OnBecameActive()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleBackground(w http.ResponseWriter, _ *http.Request) {
	s.svc.OnBackground()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	lang := r.URL.Query().Get("lang")
	if lang == "" {
		writeError(w, http.StatusBadRequest, "lang is required")
		return
	}
	locale := s.svc.OnLanguageChanged(lang)
	writeJSON(w, http.StatusOK, map[string]domain.Locale{"locale": locale})
}
