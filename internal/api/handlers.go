package api

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/recondor/recondor/internal/banner"
	"github.com/recondor/recondor/internal/dnsenum"
	"github.com/recondor/recondor/internal/portscan"
	"github.com/recondor/recondor/internal/storage"
)

// ScanRequest is the request body for POST /api/v1/scan.
type ScanRequest struct {
	Target    string `json:"target" validate:"required,max=253"`
	Ports     string `json:"ports" validate:"omitempty,max=1024"`
	TimeoutMS int    `json:"timeout_ms" validate:"omitempty,min=1,max=60000"`
	Workers   int    `json:"workers" validate:"omitempty,min=1,max=1000"`
}

// DNSRequest is the request body for POST /api/v1/dns.
type DNSRequest struct {
	Domain     string   `json:"domain" validate:"required,max=253"`
	Nameserver string   `json:"nameserver" validate:"omitempty,max=253"`
	Types      []string `json:"types" validate:"omitempty,dive,max=10"`
}

// BannerRequest is the request body for POST /api/v1/banner.
type BannerRequest struct {
	Target    string `json:"target" validate:"required,max=253"`
	Ports     string `json:"ports" validate:"omitempty,max=1024"`
	TimeoutMS int    `json:"timeout_ms" validate:"omitempty,min=1,max=60000"`
	Workers   int    `json:"workers" validate:"omitempty,min=1,max=1000"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status := "healthy"
	checks := make(map[string]string)

	if s.store != nil {
		if err := s.store.Ping(ctx); err != nil {
			status = "unhealthy"
			checks["storage"] = "failed: " + err.Error()
		} else {
			checks["storage"] = "ok"
		}
	} else {
		checks["storage"] = "not configured"
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	s.writeJSON(w, r, statusCode, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"service":    "recondor-api",
		"version":    s.version,
		"uptime":     time.Since(s.startTime).String(),
		"goroutines": runtime.NumGoroutine(),
		"requests":   s.requestTotals(),
		"timestamp":  time.Now().UTC(),
	})
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"service":   "recondor",
		"version":   s.version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	var req ScanRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid scan request: %w", err))
		return
	}

	spec := req.Ports
	if spec == "" {
		spec = s.config.Scanning.DefaultPorts
	}
	ports, err := portscan.ParsePorts(spec)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	cfg := portscan.Config{
		Timeout: s.config.Scanning.Timeout,
		Workers: s.config.Scanning.Workers,
		Ports:   ports,
	}
	if req.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}

	result, err := s.runScan(r.Context(), req.Target, cfg)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.saveHistory(r, storage.KindPortScan, req.Target,
		result.ResolvedIP, len(result.OpenPorts), result.Report())
	s.writeJSON(w, r, http.StatusOK, result.Report())
}

func (s *Server) dnsHandler(w http.ResponseWriter, r *http.Request) {
	var req DNSRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid dns request: %w", err))
		return
	}

	cfg := dnsenum.Config{
		Nameserver: s.config.DNS.Nameserver,
		Timeout:    s.config.DNS.Timeout,
		Types:      req.Types,
	}
	if req.Nameserver != "" {
		cfg.Nameserver = req.Nameserver
	}

	result, err := s.runDNS(r.Context(), req.Domain, cfg)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.saveHistory(r, storage.KindDNSLookup, req.Domain, "", 0, result.Report())
	s.writeJSON(w, r, http.StatusOK, result.Report())
}

func (s *Server) bannerHandler(w http.ResponseWriter, r *http.Request) {
	var req BannerRequest
	if err := s.parseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid banner request: %w", err))
		return
	}

	cfg := banner.Config{
		Timeout: s.config.Banner.Timeout,
		Workers: s.config.Banner.Workers,
	}
	if req.Ports != "" {
		ports, err := portscan.ParsePorts(req.Ports)
		if err != nil {
			s.writeEngineError(w, r, err)
			return
		}
		cfg.Ports = ports
	}
	if req.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}
	if req.Workers > 0 {
		cfg.Workers = req.Workers
	}

	result, err := s.runBanner(r.Context(), req.Target, cfg)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.saveHistory(r, storage.KindBannerGrab, req.Target,
		result.ResolvedIP, 0, result.Report())
	s.writeJSON(w, r, http.StatusOK, result.Report())
}

func (s *Server) listScansHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, http.StatusServiceUnavailable,
			fmt.Errorf("scan history storage is not enabled"))
		return
	}

	limit := storage.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			s.writeError(w, r, http.StatusBadRequest,
				fmt.Errorf("invalid limit: %s", v))
			return
		}
		limit = parsed
	}

	records, err := s.store.ListScans(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, map[string]any{
		"scans": records,
		"count": len(records),
	})
}

func (s *Server) getScanHandler(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		s.writeError(w, r, http.StatusServiceUnavailable,
			fmt.Errorf("scan history storage is not enabled"))
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest,
			fmt.Errorf("invalid scan id: %w", err))
		return
	}

	record, err := s.store.GetScan(r.Context(), id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	s.writeJSON(w, r, http.StatusOK, record)
}

// saveHistory persists a run when storage is attached. Failures are
// logged, not surfaced: the recon result already exists.
func (s *Server) saveHistory(r *http.Request, kind, target, ip string, openPorts int, payload any) {
	if s.store == nil {
		return
	}

	rec, err := storage.NewScanRecord(kind, target, ip, openPorts, payload)
	if err != nil {
		s.logger.Error("Failed to build history record", "error", err.Error())
		return
	}
	if err := s.store.SaveScan(r.Context(), rec); err != nil {
		s.logger.Error("Failed to save scan history", "error", err.Error())
	}
}
