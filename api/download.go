package api

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/openclaw/qrgen/qr"
	"github.com/openclaw/qrgen/store"
)

// attachmentSaver streams a finished download to the browser as a file
// attachment.
type attachmentSaver struct {
	w           http.ResponseWriter
	contentType string
	wrote       bool
}

func (a *attachmentSaver) Save(name string, r io.Reader, size int64) error {
	h := a.w.Header()
	h.Set("Content-Type", a.contentType)
	h.Set("Content-Length", strconv.FormatInt(size, 10))
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	a.w.WriteHeader(http.StatusOK)
	a.wrote = true
	_, err := io.Copy(a.w, r)
	return err
}

// handleDownload fetches the session's generated URL, as it is at the time
// of the request, and returns it as qrcode.<format>. The server write
// timeout is lifted for this route; only download.timeout bounds it.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, id string, sess *qr.Session) {
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		s.Log.Debug("cannot clear write deadline", "session", id, "error", err)
	}

	st := sess.Snapshot()
	saver := &attachmentSaver{w: w, contentType: st.Format.ContentType()}

	res := s.Downloader.Download(r.Context(), st.GeneratedURL, st.Format, saver)
	sess.ReportDownload(res)
	s.recordDownload(id, res)

	switch res.Status {
	case qr.DownloadSkipped:
		w.WriteHeader(http.StatusNoContent)
	case qr.DownloadFailed:
		if !saver.wrote {
			writeError(w, http.StatusBadGateway, res.Err.Error())
		}
	}
}

func (s *Server) recordDownload(id string, res qr.DownloadResult) {
	if s.History == nil || res.Status == qr.DownloadSkipped {
		return
	}
	d := &store.Download{
		SessionID: id,
		URL:       res.URL,
		Filename:  res.Filename,
		Bytes:     res.Bytes,
		Status:    string(res.Status),
	}
	if res.Err != nil {
		d.Error = res.Err.Error()
	}
	if err := s.History.SaveDownload(d); err != nil {
		s.Log.Warn("failed to record download", "session", id, "error", err)
	}
}
