package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/chameleonfi/chameleon-bot/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseListOpts extracts pagination and time-window parameters from the query
// string. Defaults: limit=50 (max 500), offset=0. since/until take RFC 3339
// timestamps.
func parseListOpts(r *http.Request) domain.ListOpts {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{
		Limit:  limit,
		Offset: offset,
	}

	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Since = &t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.Until = &t
		}
	}

	return opts
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// outcomeResponse is the JSON shape for one execution outcome.
type outcomeResponse struct {
	ID               string    `json:"id"`
	DecisionID       string    `json:"decision_id"`
	User             string    `json:"user"`
	SourceChainID    uint64    `json:"source_chain_id"`
	SourceProtocolID uint64    `json:"source_protocol_id"`
	DestChainID      uint64    `json:"dest_chain_id"`
	DestProtocolID   uint64    `json:"dest_protocol_id"`
	Amount           string    `json:"amount"`
	CrossChain       bool      `json:"cross_chain"`
	Status           string    `json:"status"`
	TxHash           string    `json:"tx_hash,omitempty"`
	GasUSD           int64     `json:"gas_usd"`
	GainBps          int64     `json:"gain_bps"`
	ErrorMsg         string    `json:"error_msg,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toOutcomeResponse(out domain.ExecutionOutcome) outcomeResponse {
	amount := "0"
	if out.Amount != nil {
		amount = out.Amount.String()
	}
	return outcomeResponse{
		ID:               out.ID,
		DecisionID:       out.DecisionID,
		User:             out.User.Hex(),
		SourceChainID:    out.SourceChainID,
		SourceProtocolID: out.SourceProtocolID,
		DestChainID:      out.DestChainID,
		DestProtocolID:   out.DestProtocolID,
		Amount:           amount,
		CrossChain:       out.CrossChain,
		Status:           string(out.Status),
		TxHash:           out.TxHash,
		GasUSD:           out.GasUSD,
		GainBps:          out.GainBps,
		ErrorMsg:         out.ErrorMsg,
		CreatedAt:        out.CreatedAt,
		UpdatedAt:        out.UpdatedAt,
	}
}

func toOutcomeResponses(outs []domain.ExecutionOutcome) []outcomeResponse {
	resp := make([]outcomeResponse, 0, len(outs))
	for _, out := range outs {
		resp = append(resp, toOutcomeResponse(out))
	}
	return resp
}
