package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sm8ke1/pulsenet/internal/dnsbench"
	"github.com/sm8ke1/pulsenet/internal/domain"
	"github.com/sm8ke1/pulsenet/internal/netadapter"
	"github.com/sm8ke1/pulsenet/internal/speedtest"
	"github.com/sm8ke1/pulsenet/internal/store"
)

// ---- DNS ----

type dnsPayload struct {
	Domain string `json:"domain"`
	Rounds int    `json:"rounds,omitempty"`
}

func (s *Server) handleDNSTest(w http.ResponseWriter, r *http.Request) {
	var p dnsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	report, err := s.DNS.Test(r.Context(), p.Domain)
	if err != nil {
		writeDNSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDNSBenchmark(w http.ResponseWriter, r *http.Request) {
	var p dnsPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	report, err := s.DNS.Benchmark(r.Context(), p.Domain, p.Rounds)
	if err != nil {
		writeDNSError(w, err)
		return
	}

	detail := fmt.Sprintf("%s: no usable server", report.Domain)
	if len(report.Top) > 0 && report.Top[0].AvgLatencyMs != nil {
		detail = fmt.Sprintf("%s: fastest %s (%.0f ms, %d%%)",
			report.Domain, report.Top[0].Server,
			*report.Top[0].AvgLatencyMs, report.Top[0].SuccessRate)
	}
	if _, err := s.Store.AppendLog(domain.LogEntry{
		Category: domain.LogDNS,
		Title:    "DNS benchmark",
		Detail:   detail,
	}); err != nil {
		s.Logger.Warn("log_append_error", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleDNSBatch(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Domains string `json:"domains"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	entries, err := s.DNS.Batch(r.Context(), p.Domains)
	if err != nil {
		writeDNSError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults": dnsbench.DefaultServers,
		"servers":  s.DNS.Servers(),
	})
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Server string `json:"server"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.DNS.AddCustomServer(p.Server); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"servers": s.DNS.Servers()})
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	server := r.URL.Query().Get("server")
	if server == "" {
		writeError(w, http.StatusBadRequest, "missing server")
		return
	}
	if err := s.DNS.RemoveCustomServer(server); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeDNSError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dnsbench.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, dnsbench.ErrInvalidDomain),
		errors.Is(err, dnsbench.ErrEmptyBatch),
		errors.Is(err, dnsbench.ErrBatchTooLarge):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusBadGateway, "communication-error")
	}
}

// ---- adapters ----

func (s *Server) handleListAdapters(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("refresh") == "1"
	adapters, err := s.Adapters.List(r.Context(), force)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if adapters == nil {
		adapters = []domain.Adapter{}
	}
	writeJSON(w, http.StatusOK, adapters)
}

type adapterPayload struct {
	Adapter   string `json:"adapter"`
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
}

func (s *Server) handleSetAdapterDNS(w http.ResponseWriter, r *http.Request) {
	var p adapterPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Adapters.SetDNS(r.Context(), p.Adapter, p.Primary, p.Secondary); err != nil {
		writeAdapterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetAdapterDNS(w http.ResponseWriter, r *http.Request) {
	var p adapterPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Adapters.ResetDNS(r.Context(), p.Adapter); err != nil {
		writeAdapterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAdapterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, netadapter.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, netadapter.ErrUnsupportedPlatform):
		writeError(w, http.StatusNotImplemented, err.Error())
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

// ---- speed test ----

func (s *Server) handleSpeedTest(w http.ResponseWriter, r *http.Request) {
	var p struct {
		Provider string `json:"provider"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	res, err := s.Speed.Run(r.Context(), p.Provider)
	switch {
	case errors.Is(err, speedtest.ErrUnknownProvider):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, speedtest.ErrBusy):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, speedtest.ErrStopped):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, "communication-error")
		return
	}

	if _, err := s.Store.AppendLog(domain.LogEntry{
		Category: domain.LogSpeed,
		Title:    "Speed test",
		Detail: fmt.Sprintf("%s: down %.2f Mbps, up %.2f Mbps, %.0f ms",
			p.Provider, res.DownloadMbps, res.UploadMbps, res.LatencyMs),
	}); err != nil {
		s.Logger.Warn("log_append_error", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSpeedStop(w http.ResponseWriter, _ *http.Request) {
	s.Speed.Stop()
	w.WriteHeader(http.StatusNoContent)
}

// ---- update ----

func (s *Server) handleUpdateCheck(w http.ResponseWriter, r *http.Request) {
	prerelease := r.URL.Query().Get("prerelease") == "1"
	writeJSON(w, http.StatusOK, s.Updates.Check(r.Context(), prerelease))
}

// ---- logs / prefs ----

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	category := domain.LogCategory(r.URL.Query().Get("type"))
	writeJSON(w, http.StatusOK, s.Store.Logs(category))
}

func (s *Server) handleClearLogs(w http.ResponseWriter, _ *http.Request) {
	if err := s.Store.ClearLogs(); err != nil {
		writeError(w, http.StatusInternalServerError, "could not clear")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExportLogs streams the filtered log as a download. An empty
// filtered list produces 204 and no body.
func (s *Server) handleExportLogs(w http.ResponseWriter, r *http.Request) {
	category := domain.LogCategory(r.URL.Query().Get("type"))
	entries := s.Store.Logs(category)
	if len(entries) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="pulsenet-log.csv"`)
		_, _ = w.Write(store.MarshalLogsCSV(entries))
	default:
		raw, err := store.MarshalLogsJSON(entries)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "encode error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="pulsenet-log.json"`)
		_, _ = w.Write(raw)
	}
}

func (s *Server) handleGetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": s.Store.Pref(key)})
}

func (s *Server) handleSetPref(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	var p struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "bad payload")
		return
	}
	if err := s.Store.SetPref(key, p.Value); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
