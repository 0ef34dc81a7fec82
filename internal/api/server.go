package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"riskwatch/internal/alerts"
	"riskwatch/internal/catalog"
	"riskwatch/internal/config"
	"riskwatch/internal/history"
	"riskwatch/internal/model"
	"riskwatch/internal/rules"
)

// Core is the slice of the engine the API needs.
type Core interface {
	Snapshot() (model.RiskScore, bool)
	Trend() model.TrendResult
	Forecast(horizonDays int) model.ForecastResult
	Rules() []model.AlertRule
	ReplaceRules(ctx context.Context, ruleSet []model.AlertRule) error
	TestRule(rule model.AlertRule) bool
	UpdateCatalog(cat *model.Catalog)
	Process(ctx context.Context) (model.RiskScore, []rules.Outcome)
	UpdateConfig(cfg *config.Config)
	Reset()
}

type Server struct {
	cfg     *config.Manager
	history *history.Store
	alerts  *alerts.Store
	core    Core
	logger  *slog.Logger
	version string
}

type statusResponse struct {
	Status      string    `json:"status"`
	Time        string    `json:"time"`
	Version     string    `json:"version"`
	ConfigPath  string    `json:"config_path"`
	RuleCount   int       `json:"rule_count"`
	History     int       `json:"history_days"`
	AlertsToday int       `json:"alerts_today"`
	Snapshot    *snapInfo `json:"snapshot,omitempty"`
}

type snapInfo struct {
	Total     float64         `json:"total"`
	Level     model.RiskLevel `json:"level"`
	Timestamp string          `json:"timestamp"`
}

func Start(ctx context.Context, cfg *config.Manager, historyStore *history.Store, alertsStore *alerts.Store, core Core, logger *slog.Logger, version string) *http.Server {
	if cfg == nil {
		return nil
	}
	current := cfg.Get().API
	if !current.Enabled {
		if logger != nil {
			logger.Info("api disabled")
		}
		return nil
	}
	if logger != nil {
		logger.Info("api enabled", "addr", current.Addr)
	}
	server := &Server{
		cfg:     cfg,
		history: historyStore,
		alerts:  alertsStore,
		core:    core,
		logger:  logger,
		version: version,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/status", server.handleStatus)
	mux.HandleFunc("/score", server.handleScore)
	mux.HandleFunc("/trend", server.handleTrend)
	mux.HandleFunc("/forecast", server.handleForecast)
	mux.HandleFunc("/history", server.handleHistory)
	mux.HandleFunc("/alerts", server.handleAlerts)
	mux.HandleFunc("/rules", server.handleRules)
	mux.HandleFunc("/rules/test", server.handleRuleTest)
	mux.HandleFunc("/catalog", server.handleCatalog)
	mux.HandleFunc("/evaluate", server.handleEvaluate)
	mux.HandleFunc("/admin/clear", server.handleClear)
	mux.HandleFunc("/admin/restart", server.handleRestart)

	httpServer := &http.Server{Addr: current.Addr, Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	resp := statusResponse{
		Status:      "ok",
		Time:        time.Now().UTC().Format(time.RFC3339Nano),
		Version:     s.version,
		ConfigPath:  s.cfg.Path(),
		RuleCount:   len(s.core.Rules()),
		History:     s.history.Len(),
		AlertsToday: s.alerts.CountOn(time.Now().UTC()),
	}
	if score, ok := s.core.Snapshot(); ok {
		resp.Snapshot = &snapInfo{
			Total:     score.Total,
			Level:     score.Level,
			Timestamp: score.Timestamp.Format(time.RFC3339Nano),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	score, ok := s.core.Snapshot()
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.core.Trend())
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 90 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		days = n
	}
	writeJSON(w, http.StatusOK, s.core.Forecast(days))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	list := s.history.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"history": list,
		"count":   len(list),
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	sinceStr := r.URL.Query().Get("since")
	var list []model.Alert
	if sinceStr != "" {
		ts, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		list = s.alerts.Since(ts)
	} else {
		list = s.alerts.List(limit)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": list,
		"count":  len(list),
	})
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		list := s.core.Rules()
		writeJSON(w, http.StatusOK, map[string]any{
			"rules": list,
			"count": len(list),
		})
	case http.MethodPost:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var ruleSet []model.AlertRule
		if err := json.Unmarshal(body, &ruleSet); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for i := range ruleSet {
			if ruleSet[i].ID == "" {
				ruleSet[i].ID = uuid.NewString()
			}
			if len(ruleSet[i].Conditions) == 0 {
				// An empty conjunction would vacuously always fire.
				w.WriteHeader(http.StatusBadRequest)
				return
			}
		}
		if err := s.core.ReplaceRules(r.Context(), ruleSet); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "count": len(ruleSet)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRuleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var rule model.AlertRule
	if err := json.Unmarshal(body, &rule); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"would_fire": s.core.TestRule(rule),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 4<<20))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cat, err := catalog.Parse(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.core.UpdateCatalog(cat)
	score, outcomes := s.core.Process(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"total":    score.Total,
		"level":    score.Level,
		"outcomes": outcomes,
	})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	score, outcomes := s.core.Process(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"score":    score,
		"outcomes": outcomes,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	var req struct {
		Target string `json:"target"`
	}
	_ = json.Unmarshal(body, &req)
	switch req.Target {
	case "", "all":
		s.alerts.Clear()
		s.history.Clear()
	case "alerts":
		s.alerts.Clear()
	case "history":
		s.history.Clear()
	default:
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.core.Reset()
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
