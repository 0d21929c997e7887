package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// Origin reduces a site URL to scheme://host[:port] for identity matching.
// Scheme and host are lowercased and default ports (80 for http, 443 for
// https) are stripped. Path, query and fragment are dropped.
func Origin(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("failed to parse url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("url must be absolute: %q", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if (scheme == "http" && strings.HasSuffix(host, ":80")) ||
		(scheme == "https" && strings.HasSuffix(host, ":443")) {
		host = strings.ToLower(u.Hostname())
	}
	return scheme + "://" + host, nil
}

// SameOrigin reports whether both URLs parse and share an origin.
func SameOrigin(a, b string) bool {
	oa, err := Origin(a)
	if err != nil {
		return false
	}
	ob, err := Origin(b)
	if err != nil {
		return false
	}
	return oa == ob
}

// Join appends an API path to a site base URL without doubling slashes.
func Join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
