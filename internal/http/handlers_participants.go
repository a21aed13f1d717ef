package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type participantRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := s.svc.Directory().List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// handleCreateParticipant returns the existing participant with the same
// name (200) or the newly created one (201).
func (s *Server) handleCreateParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	name := sanitizeInput(req.Name)

	dir := s.svc.Directory()
	before, _ := dir.Resolve(r.Context(), name)

	p, err := dir.GetOrCreateByName(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}

	status := http.StatusCreated
	if p.ID == before.ID {
		status = http.StatusOK
	}
	writeJSON(w, status, p)
}

func (s *Server) handleGetParticipant(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Directory().Resolve(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleRenameParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	dir := s.svc.Directory()
	p, err := dir.Resolve(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err = dir.Rename(r.Context(), p.ID, sanitizeInput(req.Name))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
