package api

import (
	"net/http"
	"time"
)

type statusResponse struct {
	Status       string `json:"status"`
	BaseEndpoint string `json:"base_endpoint"`
	Sessions     int    `json:"sessions"`
	MaxSessions  int    `json:"max_sessions"`
	History      bool   `json:"history"`
	Uptime       string `json:"uptime"`
	Version      string `json:"version"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Status:       "ok",
		BaseEndpoint: s.Builder.BaseEndpoint(),
		Sessions:     s.Sessions.Len(),
		MaxSessions:  s.Sessions.Max(),
		History:      s.History != nil,
		Uptime:       time.Since(s.StartTime).Truncate(time.Second).String(),
		Version:      s.Version,
	})
}
