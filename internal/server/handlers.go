package server

import (
	"net/http"

	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/common"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/models"
	"github.com/ronnygunawan/RG.OpenCopilot-sub003/internal/webhook"
)

// handleHealth responds to GET /api/health with the current HealthReport.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	report := s.app.Health.Snapshot(r.Context())
	status := http.StatusOK
	if report.Status == models.HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, report)
}

// handleVersion responds to GET /api/version with build metadata.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleHealthChart responds to GET /api/health/chart.png with a rendered
// PNG of recent failure-rate and queue-depth history.
func (s *Server) handleHealthChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	points := s.history.Snapshot()
	png, err := s.chartRenderer(points)
	if err != nil {
		WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// handleWebhook responds to POST /webhook. Signature verification and
// delivery framing belong to the boundary layer this system does not
// implement; this endpoint deserializes the already-verified event body
// directly and hands it to webhook.Handler.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var event webhook.IssueEvent
	if !DecodeJSON(w, r, &event) {
		return
	}
	outcome, err := s.app.Webhook.Handle(r.Context(), event)
	if err != nil {
		s.logger.Error().Str("error", err.Error()).Msg("webhook handling failed")
		WriteError(w, http.StatusInternalServerError, "webhook handling failed")
		return
	}
	status := http.StatusOK
	if outcome == webhook.OutcomeThrottled {
		status = http.StatusTooManyRequests
	}
	WriteJSON(w, status, map[string]string{"outcome": string(outcome)})
}

// handleWebsocket upgrades GET /ws to a websocket feed of job lifecycle
// events.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	s.app.Events.ServeWS(w, r)
}
