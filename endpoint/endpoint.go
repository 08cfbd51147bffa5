// Package endpoint is a local stand-in for the remote QR image service. It
// accepts the same query parameters the widget sends and renders the code
// with go-qrcode, so the widget can be developed and tested offline.
package endpoint

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"image/jpeg"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skip2/go-qrcode"
)

// Size bounds accepted by the stand-in, in pixels.
const (
	minSize = 10
	maxSize = 1000
)

// Request is a parsed image request.
type Request struct {
	Data       string
	Size       int
	Format     string
	Foreground color.RGBA
	Background color.RGBA
}

// NewRouter returns the stand-in image API. The image is served from "/".
func NewRouter(log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		handleCreate(w, r, log)
	})
	return r
}

func handleCreate(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	req, err := ParseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, contentType, err := Render(req)
	if err != nil {
		log.Error("render qr image", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Debug("rendered qr image", "format", req.Format, "size", req.Size, "bytes", len(body))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// ParseRequest reads data, size, format, color and bgcolor from the query.
func ParseRequest(r *http.Request) (*Request, error) {
	q := r.URL.Query()

	req := &Request{
		Data:       q.Get("data"),
		Size:       200,
		Format:     "png",
		Foreground: color.RGBA{0, 0, 0, 0xff},
		Background: color.RGBA{0xff, 0xff, 0xff, 0xff},
	}
	if req.Data == "" {
		return nil, errors.New("data is required")
	}

	if v := q.Get("size"); v != "" {
		n, err := parseSize(v)
		if err != nil {
			return nil, err
		}
		req.Size = n
	}
	if v := q.Get("format"); v != "" {
		switch v {
		case "png", "jpg", "jpeg", "svg":
			req.Format = v
		default:
			return nil, fmt.Errorf("unsupported format %q", v)
		}
	}
	if v := q.Get("color"); v != "" {
		c, err := parseHex(v)
		if err != nil {
			return nil, fmt.Errorf("color: %w", err)
		}
		req.Foreground = c
	}
	if v := q.Get("bgcolor"); v != "" {
		c, err := parseHex(v)
		if err != nil {
			return nil, fmt.Errorf("bgcolor: %w", err)
		}
		req.Background = c
	}
	return req, nil
}

// parseSize accepts "NxN". Non-square sizes are rejected.
func parseSize(v string) (int, error) {
	w, h, ok := strings.Cut(v, "x")
	if !ok {
		return 0, fmt.Errorf("size %q: want WIDTHxHEIGHT", v)
	}
	wn, err := strconv.Atoi(w)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", v, err)
	}
	hn, err := strconv.Atoi(h)
	if err != nil {
		return 0, fmt.Errorf("size %q: %w", v, err)
	}
	if wn != hn {
		return 0, fmt.Errorf("size %q: image must be square", v)
	}
	if wn < minSize || wn > maxSize {
		return 0, fmt.Errorf("size %q: out of range %d-%d", v, minSize, maxSize)
	}
	return wn, nil
}

func parseHex(v string) (color.RGBA, error) {
	v = strings.TrimPrefix(v, "#")
	if len(v) != 6 {
		return color.RGBA{}, fmt.Errorf("%q is not a 6 digit hex color", v)
	}
	n, err := strconv.ParseUint(v, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%q is not a 6 digit hex color", v)
	}
	return color.RGBA{R: uint8(n >> 16), G: uint8(n >> 8), B: uint8(n), A: 0xff}, nil
}

// Render encodes req and returns the image bytes and their content type.
func Render(req *Request) ([]byte, string, error) {
	code, err := qrcode.New(req.Data, qrcode.Medium)
	if err != nil {
		return nil, "", fmt.Errorf("encode qr: %w", err)
	}
	code.ForegroundColor = req.Foreground
	code.BackgroundColor = req.Background

	switch req.Format {
	case "svg":
		return renderSVG(code, req), "image/svg+xml", nil
	case "jpg", "jpeg":
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, code.Image(req.Size), &jpeg.Options{Quality: 95}); err != nil {
			return nil, "", fmt.Errorf("encode jpeg: %w", err)
		}
		return buf.Bytes(), "image/jpeg", nil
	default:
		png, err := code.PNG(req.Size)
		if err != nil {
			return nil, "", fmt.Errorf("encode png: %w", err)
		}
		return png, "image/png", nil
	}
}

func renderSVG(code *qrcode.QRCode, req *Request) []byte {
	bitmap := code.Bitmap()
	n := len(bitmap)

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d" shape-rendering="crispEdges">`,
		req.Size, req.Size, n, n)
	fmt.Fprintf(&buf, `<rect width="%d" height="%d" fill="%s"/>`, n, n, hexOf(req.Background))
	fmt.Fprintf(&buf, `<path fill="%s" d="`, hexOf(req.Foreground))
	for y, row := range bitmap {
		for x, dark := range row {
			if dark {
				fmt.Fprintf(&buf, "M%d %dh1v1h-1z", x, y)
			}
		}
	}
	buf.WriteString(`"/></svg>`)
	return buf.Bytes()
}

func hexOf(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
