package qr

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Options are the inputs of a single request URL.
type Options struct {
	Content    string
	Size       int
	Format     Format
	Foreground string
	Background string
}

// Builder turns Options into request URLs against one base endpoint. The
// endpoint is fixed at construction and never changes.
type Builder struct {
	base string
}

// NewBuilder validates baseEndpoint and returns a Builder for it. The
// endpoint must be an absolute http(s) URL without a query or fragment,
// since parameters are appended after a literal '?'.
func NewBuilder(baseEndpoint string) (*Builder, error) {
	u, err := url.Parse(baseEndpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidEndpoint, baseEndpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidEndpoint, baseEndpoint)
	}
	if u.RawQuery != "" || u.ForceQuery || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %q must not carry a query or fragment", ErrInvalidEndpoint, baseEndpoint)
	}
	return &Builder{base: baseEndpoint}, nil
}

// BaseEndpoint returns the endpoint the builder was created with.
func (b *Builder) BaseEndpoint() string {
	return b.base
}

// BuildURL returns base?data=..&size=NxN&format=..&color=..&bgcolor=..
// Parameter order is fixed; url.Values would sort the keys.
// Callers must not pass empty content.
func (b *Builder) BuildURL(o Options) string {
	size := strconv.Itoa(o.Size)

	params := [...][2]string{
		{"data", o.Content},
		{"size", size + "x" + size},
		{"format", string(o.Format)},
		{"color", o.Foreground},
		{"bgcolor", o.Background},
	}

	var sb strings.Builder
	sb.WriteString(b.base)
	sb.WriteByte('?')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(p[0])
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(p[1]))
	}
	return sb.String()
}
