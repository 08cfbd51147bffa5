package qr

// PreviewMode tells the page what to draw in the preview box.
type PreviewMode string

const (
	PreviewPlaceholder PreviewMode = "placeholder"
	PreviewImage       PreviewMode = "image"
)

// Preview is the rendered preview box.
type Preview struct {
	Mode     PreviewMode `json:"mode"`
	ImageURL string      `json:"image_url,omitempty"`
	Alt      string      `json:"alt,omitempty"`
	Title    string      `json:"title,omitempty"`
	Hint     string      `json:"hint,omitempty"`
	// CanDownload is true whenever an image is shown.
	CanDownload bool   `json:"can_download"`
	Error       string `json:"error,omitempty"`
}

// RenderPreview maps a state to its preview. Image loading is left to the
// client; only the last download error is surfaced here.
func RenderPreview(s State) Preview {
	if s.GeneratedURL == "" {
		return Preview{
			Mode:  PreviewPlaceholder,
			Title: "QR Code Preview",
			Hint:  "Generate a QR code to see it here",
			Error: s.LastError,
		}
	}
	return Preview{
		Mode:        PreviewImage,
		ImageURL:    s.GeneratedURL,
		Alt:         "Generated QR Code",
		CanDownload: true,
		Error:       s.LastError,
	}
}
