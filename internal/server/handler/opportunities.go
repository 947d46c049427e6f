package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
	"github.com/chameleonfi/chameleon-bot/internal/service"
)

// OpportunityHandler serves the current opportunity ranking.
type OpportunityHandler struct {
	svc    *service.EngineService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(svc *service.EngineService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{svc: svc, logger: logger}
}

type opportunityResponse struct {
	SourceChainID      uint64 `json:"source_chain_id"`
	SourceProtocolID   uint64 `json:"source_protocol_id"`
	SourceAPYBps       int64  `json:"source_apy_bps"`
	DestChainID        uint64 `json:"dest_chain_id"`
	DestProtocolID     uint64 `json:"dest_protocol_id"`
	DestAPYBps         int64  `json:"dest_apy_bps"`
	DestAdapter        string `json:"dest_adapter"`
	GainBps            int64  `json:"gain_bps"`
	CrossChain         bool   `json:"cross_chain"`
	EstimatedCostUSD   int64  `json:"estimated_cost_usd"`
	ProjectedProfitUSD int64  `json:"projected_profit_usd"`
	ProfitableAfterGas bool   `json:"profitable_after_gas"`
}

// ListOpportunities takes a fresh snapshot of every adapter and returns the
// ranked opportunity list. An optional min_gain_bps query parameter raises
// or lowers the gain floor for this request.
// GET /api/opportunities?min_gain_bps=100
func (h *OpportunityHandler) ListOpportunities(w http.ResponseWriter, r *http.Request) {
	var minGainBps int64
	if v := r.URL.Query().Get("min_gain_bps"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "min_gain_bps must be a positive integer")
			return
		}
		minGainBps = n
	}

	opps, err := h.svc.Opportunities(r.Context(), minGainBps)
	if err != nil {
		if errors.Is(err, domain.ErrStaleSnapshot) {
			writeError(w, http.StatusServiceUnavailable, "snapshot data is stale")
			return
		}
		h.logger.Error("listing opportunities failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to compute opportunities")
		return
	}

	resp := make([]opportunityResponse, 0, len(opps))
	for _, o := range opps {
		resp = append(resp, opportunityResponse{
			SourceChainID:      o.Source.ChainID,
			SourceProtocolID:   o.Source.ProtocolID,
			SourceAPYBps:       o.SourceAPY,
			DestChainID:        o.Dest.ChainID,
			DestProtocolID:     o.Dest.ProtocolID,
			DestAPYBps:         o.DestAPY,
			DestAdapter:        o.DestAdapter.Address.Hex(),
			GainBps:            o.GainBps,
			CrossChain:         o.CrossChain,
			EstimatedCostUSD:   o.EstimatedCostUSD,
			ProjectedProfitUSD: o.ProjectedProfitUSD,
			ProfitableAfterGas: o.ProfitableAfterGas,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"opportunities": resp,
		"count":         len(resp),
	})
}
