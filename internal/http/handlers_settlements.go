package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"dividi/internal/core"
	"dividi/internal/log"
	"dividi/internal/services"
)

const idempotencyHeader = "Idempotency-Key"

type balancesResponse struct {
	Balances   []services.BalanceView `json:"balances"`
	AllSettled bool                   `json:"allSettled"`
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	bs, err := s.svc.Balances(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	all := true
	for _, b := range bs {
		if !b.Balance.IsZero() {
			all = false
			break
		}
	}
	writeJSON(w, http.StatusOK, balancesResponse{Balances: bs, AllSettled: all})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (s *Server) handleSettlementPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := s.svc.SettlementPlan(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// settleRequest names both parties by id or display name.
type settleRequest struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Amount core.Money `json:"amount"`
}

// storedResponse is a finished response kept for idempotent replays.
type storedResponse struct {
	status int
	body   []byte
}

// handleRecordSettlement records a confirmed transfer. With an
// Idempotency-Key header, repeated calls within the TTL replay the first
// response instead of recording again; concurrent duplicates share one call.
func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key == "" {
		res := s.recordSettlement(w, r)
		writeStored(w, res)
		return
	}
	if len(key) > 128 {
		writeError(w, r, fmt.Errorf("%w: %s too long", errBadRequest, idempotencyHeader))
		return
	}

	if res, ok := s.idempotency.Get(key); ok {
		log.FromContext(r.Context()).InfoContext(r.Context(), "Replaying settlement response", "idempotency_key", key)
		w.Header().Set("Idempotent-Replayed", "true")
		writeStored(w, res)
		return
	}

	v, _, shared := s.inflight.Do(key, func() (any, error) {
		if res, ok := s.idempotency.Get(key); ok {
			return res, nil
		}
		res := s.recordSettlement(w, r)
		// only successful recordings are remembered so a rejected call can be retried
		if res.status < 300 {
			s.idempotency.Set(key, res)
		}
		return res, nil
	})
	if shared {
		w.Header().Set("Idempotent-Replayed", "true")
	}
	writeStored(w, v.(storedResponse))
}

func (s *Server) recordSettlement(w http.ResponseWriter, r *http.Request) storedResponse {
	var req settleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return s.errorResponse(r, err)
	}

	dir := s.svc.Directory()
	from, err := dir.Resolve(r.Context(), strings.TrimSpace(req.From))
	if err != nil {
		return s.errorResponse(r, fmt.Errorf("from: %w", err))
	}
	to, err := dir.Resolve(r.Context(), strings.TrimSpace(req.To))
	if err != nil {
		return s.errorResponse(r, fmt.Errorf("to: %w", err))
	}

	e, err := s.svc.SettleUp(r.Context(), core.Transfer{From: from.ID, To: to.ID, Amount: req.Amount})
	if err != nil {
		return s.errorResponse(r, err)
	}
	return encodeStored(http.StatusCreated, e)
}

// errorResponse renders err through writeError into a storedResponse.
func (s *Server) errorResponse(r *http.Request, err error) storedResponse {
	rec := &bufferWriter{header: http.Header{}}
	writeError(rec, r, err)
	return storedResponse{status: rec.status, body: rec.buf.Bytes()}
}

func encodeStored(status int, v any) storedResponse {
	body, err := json.Marshal(v)
	if err != nil {
		return storedResponse{status: http.StatusInternalServerError, body: []byte(`{"error":"internal error","code":"internal"}`)}
	}
	return storedResponse{status: status, body: append(body, '\n')}
}

func writeStored(w http.ResponseWriter, res storedResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(res.status)
	_, _ = w.Write(res.body)
}

// bufferWriter captures a response in memory.
type bufferWriter struct {
	header http.Header
	status int
	buf    bytes.Buffer
}

func (b *bufferWriter) Header() http.Header         { return b.header }
func (b *bufferWriter) Write(p []byte) (int, error) { return b.buf.Write(p) }
func (b *bufferWriter) WriteHeader(status int)      { b.status = status }

type closeOutResponse struct {
	Archived int `json:"archived"`
}

func (s *Server) handleCloseOut(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.CloseOut(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, closeOutResponse{Archived: n})
}
