package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/service"
)

// CycleHandler triggers decision cycles on demand.
type CycleHandler struct {
	svc    *service.EngineService
	logger *slog.Logger
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(svc *service.EngineService, logger *slog.Logger) *CycleHandler {
	return &CycleHandler{svc: svc, logger: logger}
}

// TriggerCycle runs one decision cycle synchronously and returns its summary.
// POST /api/cycle/trigger
func (h *CycleHandler) TriggerCycle(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.TriggerCycle(r.Context())
	if err != nil {
		h.logger.Error("manual cycle failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "cycle failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"started_at":             summary.StartedAt.UTC().Format(time.RFC3339),
		"finished_at":            summary.FinishedAt.UTC().Format(time.RFC3339),
		"users":                  summary.Users,
		"executed":               summary.Executed,
		"failed":                 summary.Failed,
		"skipped_not_profitable": summary.SkippedNotProfitable,
		"skipped_guardrail":      summary.SkippedGuardrail,
	})
}
