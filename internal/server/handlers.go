package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/marketfacts/internal/llm"
	"github.com/aristath/marketfacts/internal/marketcal"
	"github.com/aristath/marketfacts/internal/marketdata"
)

// errorResponse is the body of every non-2xx reply
type errorResponse struct {
	Error    string                    `json:"error"`
	Attempts []marketdata.AttemptError `json:"attempts,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "marketfacts",
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleHistoricalClose handles GET /api/prices/{symbol}/close?date=YYYY-MM-DD.
// A missing date means today (UTC).
func (s *Server) handleHistoricalClose(w http.ResponseWriter, r *http.Request) {
	symbol, err := marketdata.NormalizeSymbol(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeError(w, err)
		return
	}

	date := marketcal.NormalizeDate(time.Now().UTC())
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := marketcal.ParseDate(raw)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		date = parsed
	}

	res, err := s.resolver.ResolveHistoricalClose(r.Context(), symbol, date)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":         symbol,
		"requested_date": marketcal.FormatDate(date),
		"price":          res.Fact.Price,
		"source":         res.Fact.Source,
		"date":           res.Fact.Date,
		"cached":         res.Cached,
		"attempts":       res.Attempts,
	})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	quote, err := s.resolver.Quote(r.Context(), chi.URLParam(r, "symbol"))
	s.respond(w, quote, err)
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	trends, err := s.resolver.Recommendations(r.Context(), chi.URLParam(r, "symbol"))
	s.respond(w, trends, err)
}

func (s *Server) handleEarnings(w http.ResponseWriter, r *http.Request) {
	earnings, err := s.resolver.Earnings(r.Context(), chi.URLParam(r, "symbol"))
	s.respond(w, earnings, err)
}

func (s *Server) handlePriceTarget(w http.ResponseWriter, r *http.Request) {
	target, err := s.resolver.PriceTarget(r.Context(), chi.URLParam(r, "symbol"))
	s.respond(w, target, err)
}

// chatRequest is the body of POST /api/llm/chat
type chatRequest struct {
	Model               string          `json:"model"`
	Messages            []llm.Message   `json:"messages"`
	Temperature         float64         `json:"temperature"`
	ResponseFormat      json.RawMessage `json:"response_format,omitempty"`
	MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
	Seed                *int64          `json:"seed,omitempty"`
	TimeoutMS           int             `json:"timeout_ms,omitempty"`
}

// handleChat handles POST /api/llm/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	resp, err := s.llm.ChatCompletion(r.Context(), req.Model, req.Messages, llm.Options{
		Temperature:         req.Temperature,
		ResponseFormat:      req.ResponseFormat,
		MaxCompletionTokens: req.MaxCompletionTokens,
		Seed:                req.Seed,
		Timeout:             time.Duration(req.TimeoutMS) * time.Millisecond,
	})
	s.respond(w, resp, err)
}

func (s *Server) respond(w http.ResponseWriter, data interface{}, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, data)
}

// writeError maps an error to its HTTP status. Exhaustion carries the full attempt list.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	body := errorResponse{Error: err.Error()}
	status := statusFor(err)

	var exhausted *marketdata.ExhaustedError
	if errors.As(err, &exhausted) {
		body.Attempts = exhausted.Attempts
	}

	if status >= http.StatusInternalServerError {
		s.log.Warn().Err(err).Int("status", status).Msg("Request failed")
	}
	s.writeJSON(w, status, body)
}

func statusFor(err error) int {
	var exhausted *marketdata.ExhaustedError
	var coded interface{ HTTPStatusCode() int }

	switch {
	case errors.Is(err, marketdata.ErrInvalidSymbol), errors.Is(err, llm.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, marketdata.ErrNoSources), errors.Is(err, llm.ErrMissingAPIKey):
		return http.StatusServiceUnavailable
	case errors.As(err, &exhausted), errors.As(err, &coded):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
