package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/alejandrodnm/coeus/internal/adapters/csvinput"
	"github.com/alejandrodnm/coeus/internal/domain"
)

type analyzeRequest struct {
	Trades []domain.RawTrade `json:"trades"`
}

type compareRequest struct {
	Trade     *domain.RawTrade `json:"trade"`
	Benchmark string           `json:"benchmark"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "coeus"})
}

// handleAnalyze acepta JSON o CSV. Una entrada sin filas o mal formada es 400;
// las filas inválidas viajan en el Report con 200.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()

	var rows []domain.RawTrade
	if isCSV(r.Header.Get("Content-Type")) {
		parsed, err := csvinput.Read(body)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_input", err, nil)
			return
		}
		rows = parsed
	} else {
		var req analyzeRequest
		if err := decodeJSON(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid_input", err, nil)
			return
		}
		rows = req.Trades
		for i := range rows {
			if rows[i].Row == 0 {
				rows[i].Row = i + 1
			}
		}
	}

	report, err := s.analyzer.Run(r.Context(), rows)
	if err != nil {
		s.writeRunError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

// handleCompare compara un único trade contra el benchmark. Un trade inválido es 422.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	defer body.Close()

	var req compareRequest
	if err := decodeJSON(body, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", err, nil)
		return
	}
	if req.Trade == nil {
		s.writeError(w, http.StatusBadRequest, "invalid_input", errors.New("missing trade"), nil)
		return
	}

	cmp, err := s.analyzer.CompareRaw(r.Context(), *req.Trade, req.Benchmark)
	if err != nil {
		var invalid *domain.InvalidTradeRecordError
		if errors.As(err, &invalid) {
			s.writeError(w, http.StatusUnprocessableEntity, domain.ErrorCode(err), err, invalid)
			return
		}
		s.writeRunError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNoTrades), errors.Is(err, domain.ErrInvalidTradeRecord):
		s.writeError(w, http.StatusBadRequest, domain.ErrorCode(err), err, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusServiceUnavailable, "canceled", err, nil)
	default:
		s.log.Error("analysis failed", "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal", err, nil)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode JSON response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, err error, details any) {
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code, Details: details})
}

func decodeJSON(r io.Reader, out any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func isCSV(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/csv" || strings.HasSuffix(mt, "/csv")
}
