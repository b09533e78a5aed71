package session

import (
	"net/url"
	"strings"
)

// LinkBuilder turns server-relative artifact paths into user-facing links.
type LinkBuilder struct {
	base string
}

// NewLinkBuilder uses publicBase for links when set and apiBase otherwise.
func NewLinkBuilder(apiBase, publicBase string) LinkBuilder {
	base := publicBase
	if strings.TrimSpace(base) == "" {
		base = apiBase
	}
	return LinkBuilder{base: strings.TrimRight(strings.TrimSpace(base), "/")}
}

// Download returns the link shown for path. Absolute URLs pass through.
func (b LinkBuilder) Download(path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() && u.Host != "" {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return b.base + path
}
