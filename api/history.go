package api

import (
	"net/http"

	"github.com/openclaw/qrgen/store"
)

func (s *Server) handleGetGenerations(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	gens, err := s.History.GetGenerations(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if gens == nil {
		gens = []store.Generation{}
	}

	writeJSON(w, http.StatusOK, gens)
}

func (s *Server) handleGetDownloads(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	dls, err := s.History.GetDownloads(limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if dls == nil {
		dls = []store.Download{}
	}

	writeJSON(w, http.StatusOK, dls)
}
