package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"stockwatch/internal/alerting"
	"stockwatch/internal/storage"
)

const defaultHistoryLimit = 100

type rowResponse struct {
	CapturedAt time.Time          `json:"captured_at"`
	Prices     map[string]*string `json:"prices"`
}

type ruleResponse struct {
	Ticker    string `json:"ticker"`
	Threshold string `json:"threshold"`
	Recipient string `json:"recipient"`
	Armed     bool   `json:"armed"`
}

type rulePayload struct {
	Threshold *float64 `json:"threshold"`
	Recipient string   `json:"recipient"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if s.cache != nil {
		if row, ok, err := s.cache.GetLatest(ctx); err == nil && ok {
			writeJSON(w, http.StatusOK, toRowResponse(row))
			return
		} else if err != nil {
			s.logger.Debug().Err(err).Msg("latest cache miss, reading store")
		}
	}

	row, ok, err := s.store.Latest(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("read latest row")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no data this cycle"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no rows recorded yet"})
		return
	}
	writeJSON(w, http.StatusOK, toRowResponse(row))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	rows, err := s.store.ReadRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("read history")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "no data this cycle"})
		return
	}

	out := make([]rowResponse, len(rows))
	for i, row := range rows {
		out[i] = toRowResponse(row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules := s.engine.Rules()
	sort.Slice(rules, func(i, j int) bool { return rules[i].Ticker < rules[j].Ticker })

	out := make([]ruleResponse, len(rules))
	for i, rule := range rules {
		out[i] = ruleResponse{
			Ticker:    rule.Ticker,
			Threshold: rule.Threshold.String(),
			Recipient: rule.Recipient,
			Armed:     s.engine.Armed(rule.Ticker),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutRule(w http.ResponseWriter, r *http.Request) {
	ticker := r.PathValue("ticker")
	if ticker == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ticker is required"})
		return
	}

	var payload rulePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid rule payload"})
		return
	}
	if payload.Threshold == nil || *payload.Threshold < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "threshold must be a non-negative number"})
		return
	}
	if payload.Recipient == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "recipient is required"})
		return
	}

	rule := alerting.Rule{
		Ticker:    ticker,
		Threshold: decimal.NewFromFloat(*payload.Threshold),
		Recipient: payload.Recipient,
	}
	s.engine.SetRule(rule)
	s.logger.Info().
		Str("ticker", ticker).
		Str("threshold", rule.Threshold.String()).
		Msg("alert rule replaced")

	writeJSON(w, http.StatusOK, ruleResponse{
		Ticker:    rule.Ticker,
		Threshold: rule.Threshold.String(),
		Recipient: rule.Recipient,
		Armed:     true,
	})
}

func toRowResponse(row storage.Row) rowResponse {
	out := rowResponse{
		CapturedAt: row.CapturedAt,
		Prices:     make(map[string]*string, len(row.Prices)),
	}
	for ticker, price := range row.Prices {
		if price == nil {
			out.Prices[ticker] = nil
			continue
		}
		s := price.String()
		out.Prices[ticker] = &s
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
