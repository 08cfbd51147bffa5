package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openclaw/qrgen/qr"
	"github.com/openclaw/qrgen/store"
)

type sessionResponse struct {
	ID          string   `json:"id"`
	State       qr.State `json:"state"`
	CanGenerate bool     `json:"can_generate"`
}

type generateResponse struct {
	Generated bool     `json:"generated"`
	URL       string   `json:"url,omitempty"`
	State     qr.State `json:"state"`
}

// updateRequest is a partial update; nil fields are left alone.
type updateRequest struct {
	Content *string `json:"content"`
	Size    *int    `json:"size"`
	Format  *string `json:"format"`
	Color   *string `json:"color"`
	BgColor *string `json:"bgcolor"`
}

// validate checks every present field so an update applies all or nothing.
func (u *updateRequest) validate() error {
	if u.Size != nil {
		if err := qr.ValidateSize(*u.Size); err != nil {
			return err
		}
	}
	if u.Format != nil {
		if _, err := qr.ParseFormat(*u.Format); err != nil {
			return err
		}
	}
	if u.Color != nil {
		if _, err := qr.NormalizeColor(*u.Color); err != nil {
			return err
		}
	}
	if u.BgColor != nil {
		if _, err := qr.NormalizeColor(*u.BgColor); err != nil {
			return err
		}
	}
	return nil
}

func (u *updateRequest) apply(sess *qr.Session) error {
	if u.Content != nil {
		sess.SetContent(*u.Content)
	}
	if u.Size != nil {
		if err := sess.SetSize(*u.Size); err != nil {
			return err
		}
	}
	if u.Format != nil {
		if err := sess.SetFormat(*u.Format); err != nil {
			return err
		}
	}
	if u.Color != nil {
		if err := sess.SetForeground(*u.Color); err != nil {
			return err
		}
	}
	if u.BgColor != nil {
		if err := sess.SetBackground(*u.BgColor); err != nil {
			return err
		}
	}
	return nil
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session)

// withSession resolves the {id} path parameter to a mounted session.
func (s *Server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		sess, ok := s.Sessions.Get(id)
		if !ok {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h(w, r, id, sess)
	}
}

func newSessionResponse(id string, sess *qr.Session) sessionResponse {
	st := sess.Snapshot()
	return sessionResponse{ID: id, State: st, CanGenerate: st.CanGenerate()}
}

func (s *Server) handleMount(w http.ResponseWriter, r *http.Request) {
	id, sess, err := s.Sessions.Mount()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.Log.Debug("session mounted", "session", id)
	writeJSON(w, http.StatusCreated, newSessionResponse(id, sess))
}

func (s *Server) handleUnmount(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Sessions.Unmount(id) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.Log.Debug("session unmounted", "session", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session) {
	writeJSON(w, http.StatusOK, newSessionResponse(id, sess))
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.apply(sess); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(id, sess))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session) {
	u, ok := sess.Generate(s.Builder)
	st := sess.Snapshot()
	if !ok {
		writeJSON(w, http.StatusOK, generateResponse{State: st})
		return
	}

	if s.History != nil {
		g := &store.Generation{
			SessionID: id,
			URL:       u,
			Content:   st.Content,
			Size:      st.Size,
			Format:    string(st.Format),
			Color:     st.Foreground,
			BgColor:   st.Background,
		}
		if err := s.History.SaveGeneration(g); err != nil {
			s.Log.Warn("failed to record generation", "session", id, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, generateResponse{Generated: true, URL: u, State: st})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session) {
	writeJSON(w, http.StatusOK, qr.RenderPreview(sess.Snapshot()))
}
