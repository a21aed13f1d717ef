package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"dividi/internal/core"
	"dividi/internal/services"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	params, err := ParseFilterParams(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if params.Participant != "" {
		p, err := s.svc.Directory().Resolve(r.Context(), params.Participant)
		if err != nil {
			writeError(w, r, err)
			return
		}
		params.Filter.ParticipantID = p.ID
	}

	es, err := s.svc.ListExpenses(r.Context(), params.Filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, es)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req services.CreateExpenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	req.Title = sanitizeInput(req.Title)
	req.Category = sanitizeInput(req.Category)

	e, err := s.svc.CreateExpense(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/expenses/"+string(e.ID))
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.Store().Get(r.Context(), core.ExpenseID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type markSettledRequest struct {
	IDs []core.ExpenseID `json:"ids"`
}

type markSettledResponse struct {
	Changed int `json:"changed"`
}

func (s *Server) handleMarkSettled(w http.ResponseWriter, r *http.Request) {
	var req markSettledRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := s.svc.MarkSettled(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markSettledResponse{Changed: n})
}
