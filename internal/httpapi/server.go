package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/alert"
	"github.com/sm8ke1/pulsenet/internal/dnsbench"
	"github.com/sm8ke1/pulsenet/internal/domain"
	apimw "github.com/sm8ke1/pulsenet/internal/httpapi/middleware"
	"github.com/sm8ke1/pulsenet/internal/netadapter"
	"github.com/sm8ke1/pulsenet/internal/poller"
	"github.com/sm8ke1/pulsenet/internal/speedtest"
	"github.com/sm8ke1/pulsenet/internal/store"
	"github.com/sm8ke1/pulsenet/internal/update"
)

const adminNoticeAckPref = "admin_notice_ack"

// Server exposes the diagnostics core to the desktop front-end over a
// local HTTP + WebSocket API.
type Server struct {
	Logger   *zap.Logger
	Store    *store.Store
	Poller   *poller.Poller
	Alerts   *alert.Evaluator
	DNS      *dnsbench.Engine
	Adapters *netadapter.Manager
	Speed    *speedtest.Client
	Updates  *update.Checker

	// set when any probe reports a permission error; drives the
	// one-time administrator notice.
	permissionSeen atomic.Bool
}

// Limits carries per-tier rate limiting configuration.
type Limits struct {
	ReadRPM    int
	ReadBurst  int
	AdminRPM   int
	AdminBurst int
}

// ObserveProbe is wired as a poller sink to notice permission errors.
func (s *Server) ObserveProbe(_ domain.Host, res domain.ProbeResult) {
	if res.Kind == domain.ErrPermissionDenied {
		s.permissionSeen.Store(true)
	}
}

func (s *Server) Router(keys apimw.Keys, limits Limits) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// read tier: status, diagnostics, exports
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireRead(keys))
		r.Use(apimw.RateLimit(limits.ReadRPM, limits.ReadBurst))

		r.Get("/api/hosts", s.handleListHosts)
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/stream", s.handleStream)
		r.Get("/api/notice", s.handleNotice)

		r.Post("/api/dns/test", s.handleDNSTest)
		r.Post("/api/dns/benchmark", s.handleDNSBenchmark)
		r.Post("/api/dns/batch", s.handleDNSBatch)
		r.Get("/api/dns/servers", s.handleListServers)

		r.Get("/api/adapters", s.handleListAdapters)
		r.Post("/api/speedtest", s.handleSpeedTest)
		r.Post("/api/speedtest/stop", s.handleSpeedStop)
		r.Get("/api/update", s.handleUpdateCheck)

		r.Get("/api/logs", s.handleListLogs)
		r.Get("/api/logs/export", s.handleExportLogs)
		r.Get("/api/prefs/{key}", s.handleGetPref)
	})

	// admin tier: durable mutations and system configuration
	r.Group(func(r chi.Router) {
		r.Use(apimw.RequireAdmin(keys))
		r.Use(apimw.RateLimit(limits.AdminRPM, limits.AdminBurst))

		r.Post("/api/hosts", s.handleAddHost)
		r.Put("/api/hosts/{id}", s.handleUpdateHost)
		r.Delete("/api/hosts/{id}", s.handleDeleteHost)
		r.Post("/api/hosts/reorder", s.handleReorderHosts)
		r.Post("/api/hosts/{id}/pin", s.handlePinHost)
		r.Post("/api/hosts/{id}/pause", s.handlePauseHost)
		r.Post("/api/hosts/{id}/interval", s.handleHostInterval)
		r.Post("/api/hosts/{id}/editing", s.handleHostEditing)

		r.Post("/api/dns/servers", s.handleAddServer)
		r.Delete("/api/dns/servers", s.handleRemoveServer)
		r.Post("/api/adapters/dns", s.handleSetAdapterDNS)
		r.Post("/api/adapters/reset", s.handleResetAdapterDNS)

		r.Delete("/api/logs", s.handleClearLogs)
		r.Put("/api/prefs/{key}", s.handleSetPref)
		r.Post("/api/notice/ack", s.handleNoticeAck)
	})

	return r
}

// ---- hosts ----

func (s *Server) handleListHosts(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Store.Hosts())
}

type hostPayload struct {
	Label   string `json:"label"`
	Address string `json:"address"`
}

func (s *Server) handleAddHost(w http.ResponseWriter, r *http.Request) {
	var p hostPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	h, err := s.Store.AddHost(p.Label, p.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.Poller.Track(h)
	s.Logger.Info("host_added",
		zap.String("host_id", string(h.ID)),
		zap.String("address", h.Address),
	)
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleUpdateHost(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	var p hostPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	h, err := s.Store.UpdateHost(id, p.Label, p.Address)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.Poller.Track(h)
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHost(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	if err := s.Store.DeleteHost(id); err != nil {
		writeStoreError(w, err)
		return
	}
	s.Poller.Forget(id)
	s.Alerts.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderHosts(w http.ResponseWriter, r *http.Request) {
	var p struct {
		IDs []domain.HostID `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || len(p.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Store.Reorder(p.IDs); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Store.Hosts())
}

func (s *Server) handlePinHost(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	var p struct {
		Pinned bool `json:"pinned"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Store.SetPinned(id, p.Pinned); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Store.Hosts())
}

func (s *Server) handlePauseHost(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	var p struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Store.SetPaused(id, p.Paused); err != nil {
		writeStoreError(w, err)
		return
	}
	if p.Paused {
		s.Poller.Pause(id)
	} else {
		s.Poller.Resume(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHostInterval(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	var p struct {
		IntervalMS int `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.IntervalMS <= 0 {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	s.Poller.SetInterval(id, time.Duration(p.IntervalMS)*time.Millisecond)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHostEditing(w http.ResponseWriter, r *http.Request) {
	id := domain.HostID(chi.URLParam(r, "id"))
	var p struct {
		Editing bool `json:"editing"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	s.Alerts.SetEditing(id, p.Editing)
	w.WriteHeader(http.StatusNoContent)
}

// ---- status / notice ----

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statusPayload())
}

type statusPayload struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Hosts       []poller.Status `json:"hosts"`
}

func (s *Server) statusPayload() statusPayload {
	return statusPayload{
		GeneratedAt: time.Now().UTC(),
		Hosts:       s.Poller.Snapshot(),
	}
}

func (s *Server) handleNotice(w http.ResponseWriter, _ *http.Request) {
	show := s.permissionSeen.Load() && s.Store.Pref(adminNoticeAckPref) == ""
	writeJSON(w, http.StatusOK, map[string]bool{"show": show})
}

func (s *Server) handleNoticeAck(w http.ResponseWriter, _ *http.Request) {
	if err := s.Store.SetPref(adminNoticeAckPref, "1"); err != nil {
		writeError(w, http.StatusInternalServerError, "could not save")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- helpers ----

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
