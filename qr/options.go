// Package qr holds the QR widget core: the per-widget configuration state,
// the request builder for the remote image endpoint, the preview renderer and
// the download trigger.
package qr

import (
	"errors"
	"fmt"
	"strings"
)

// Size limits for the square output image, in pixels.
const (
	MinSize  = 100
	MaxSize  = 500
	SizeStep = 50
)

var (
	// ErrInvalidSize is returned for sizes off the slider steps.
	ErrInvalidSize = errors.New("invalid size")
	// ErrInvalidFormat is returned for formats other than png, svg and jpg.
	ErrInvalidFormat = errors.New("invalid format")
	// ErrInvalidColor is returned for colors that are not 6 hex digits.
	ErrInvalidColor = errors.New("invalid color")
	// ErrInvalidEndpoint is returned by NewBuilder for unusable base endpoints.
	ErrInvalidEndpoint = errors.New("invalid base endpoint")
)

// Format is the image format requested from the remote endpoint.
type Format string

const (
	FormatPNG Format = "png"
	FormatSVG Format = "svg"
	FormatJPG Format = "jpg"
)

// Formats lists the supported formats in the order the format picker shows them.
var Formats = []Format{FormatPNG, FormatSVG, FormatJPG}

// ParseFormat accepts png, svg or jpg in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPNG, FormatSVG, FormatJPG:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidFormat, s)
}

// Filename is the name a downloaded image is saved under.
func (f Format) Filename() string {
	return "qrcode." + string(f)
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatSVG:
		return "image/svg+xml"
	case FormatJPG:
		return "image/jpeg"
	default:
		return "image/png"
	}
}

// ValidateSize reports whether n is one of the slider steps in
// [MinSize, MaxSize].
func ValidateSize(n int) error {
	if n < MinSize || n > MaxSize || (n-MinSize)%SizeStep != 0 {
		return fmt.Errorf("%w: %d (want %d-%d in steps of %d)", ErrInvalidSize, n, MinSize, MaxSize, SizeStep)
	}
	return nil
}

// NormalizeColor strips a single leading '#' and checks that exactly six hex
// digits remain. Case is preserved.
func NormalizeColor(s string) (string, error) {
	c := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(c) != 6 {
		return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	for _, r := range c {
		if !isHex(r) {
			return "", fmt.Errorf("%w: %q", ErrInvalidColor, s)
		}
	}
	return c, nil
}

func isHex(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Defaults are the values a freshly mounted widget starts with.
type Defaults struct {
	Size       int
	Format     Format
	Foreground string
	Background string
}

// DefaultSettings returns the built-in widget defaults: 200px PNG, white
// modules on a black background.
func DefaultSettings() Defaults {
	return Defaults{
		Size:       200,
		Format:     FormatPNG,
		Foreground: "FFFFFF",
		Background: "000000",
	}
}

// Validate normalizes the colors in place and checks every field.
func (d *Defaults) Validate() error {
	if err := ValidateSize(d.Size); err != nil {
		return fmt.Errorf("default size: %w", err)
	}
	f, err := ParseFormat(string(d.Format))
	if err != nil {
		return fmt.Errorf("default format: %w", err)
	}
	d.Format = f
	if d.Foreground, err = NormalizeColor(d.Foreground); err != nil {
		return fmt.Errorf("default color: %w", err)
	}
	if d.Background, err = NormalizeColor(d.Background); err != nil {
		return fmt.Errorf("default bgcolor: %w", err)
	}
	return nil
}
