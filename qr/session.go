package qr

import (
	"sync"
)

// State is a point-in-time copy of a Session.
type State struct {
	Content      string `json:"content"`
	Size         int    `json:"size"`
	Format       Format `json:"format"`
	Foreground   string `json:"color"`
	Background   string `json:"bgcolor"`
	GeneratedURL string `json:"generated_url"`
	Busy         bool   `json:"busy"`
	LastError    string `json:"last_error,omitempty"`
}

// Options returns the request options described by the state.
func (s State) Options() Options {
	return Options{
		Content:    s.Content,
		Size:       s.Size,
		Format:     s.Format,
		Foreground: s.Foreground,
		Background: s.Background,
	}
}

// CanGenerate reports whether a generation would do anything.
func (s State) CanGenerate() bool {
	return s.Content != "" && !s.Busy
}

// Session is the configuration record of one mounted widget. All methods are
// safe for concurrent use.
type Session struct {
	mu    sync.RWMutex
	state State
}

// NewSession returns a session populated with d. d is assumed valid.
func NewSession(d Defaults) *Session {
	return &Session{
		state: State{
			Size:       d.Size,
			Format:     d.Format,
			Foreground: d.Foreground,
			Background: d.Background,
		},
	}
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CanGenerate reports whether Generate would produce a URL right now.
func (s *Session) CanGenerate() bool {
	return s.Snapshot().CanGenerate()
}

// SetContent replaces the content. Empty content disables generation.
func (s *Session) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Content = content
}

// SetSize sets the pixel size; n must be a valid slider step.
func (s *Session) SetSize(n int) error {
	if err := ValidateSize(n); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Size = n
	return nil
}

// SetFormat sets the output format from its name.
func (s *Session) SetFormat(name string) error {
	f, err := ParseFormat(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Format = f
	return nil
}

// SetForeground sets the module color. A leading '#' is dropped.
func (s *Session) SetForeground(hex string) error {
	c, err := NormalizeColor(hex)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Foreground = c
	return nil
}

// SetBackground sets the background color. A leading '#' is dropped.
func (s *Session) SetBackground(hex string) error {
	c, err := NormalizeColor(hex)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Background = c
	return nil
}

// Generate builds the request URL for the current configuration and stores
// it as the generated URL. It is a silent no-op, returning false, when the
// content is empty or another generation is in progress. The previous URL
// stays in place until a new one overwrites it.
func (s *Session) Generate(b *Builder) (string, bool) {
	s.mu.Lock()
	if !s.state.CanGenerate() {
		s.mu.Unlock()
		return "", false
	}
	s.state.Busy = true
	opts := s.state.Options()
	s.mu.Unlock()

	u := b.BuildURL(opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.GeneratedURL = u
	s.state.Busy = false
	return u, true
}

// ReportDownload records the outcome of a download in the status field.
// Configuration fields, the busy flag and the generated URL are not touched.
func (s *Session) ReportDownload(res DownloadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch res.Status {
	case DownloadFailed:
		s.state.LastError = res.Err.Error()
	case DownloadSaved:
		s.state.LastError = ""
	}
}
