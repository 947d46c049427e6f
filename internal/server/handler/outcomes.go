package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/service"
)

// OutcomeHandler serves execution history and in-flight bridge queries.
type OutcomeHandler struct {
	svc    *service.EngineService
	logger *slog.Logger
}

// NewOutcomeHandler creates an OutcomeHandler.
func NewOutcomeHandler(svc *service.EngineService, logger *slog.Logger) *OutcomeHandler {
	return &OutcomeHandler{svc: svc, logger: logger}
}

// ListOutcomes returns a user's execution history, newest first. The user
// query parameter is required.
// GET /api/outcomes?user=0x...
func (h *OutcomeHandler) ListOutcomes(w http.ResponseWriter, r *http.Request) {
	userHex := r.URL.Query().Get("user")
	if userHex == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}
	if !common.IsHexAddress(userHex) {
		writeError(w, http.StatusBadRequest, "user is not a valid address")
		return
	}

	opts := parseListOpts(r)
	outs, err := h.svc.OutcomeHistory(r.Context(), common.HexToAddress(userHex), opts)
	if err != nil {
		h.logger.Error("listing outcomes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": toOutcomeResponses(outs),
		"count":    len(outs),
	})
}

// GetOutcome returns one outcome by id.
// GET /api/outcomes/{id}
func (h *OutcomeHandler) GetOutcome(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "outcome id is required")
		return
	}

	out, err := h.svc.Outcome(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "outcome not found")
			return
		}
		h.logger.Error("getting outcome failed",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get outcome")
		return
	}

	writeJSON(w, http.StatusOK, toOutcomeResponse(out))
}

// ListInFlightBridges returns every outcome still waiting on a destination
// chain completion event.
// GET /api/bridges/inflight
func (h *OutcomeHandler) ListInFlightBridges(w http.ResponseWriter, r *http.Request) {
	outs, err := h.svc.InFlightBridges(r.Context())
	if err != nil {
		h.logger.Error("listing in-flight bridges failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list in-flight bridges")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bridges": toOutcomeResponses(outs),
		"count":   len(outs),
	})
}
