package connection

import (
	"fmt"
	"net/url"
)

// BuildURL derives the socket URL from the page origin.
// The secure scheme (wss) is chosen iff the origin is served over https.
func BuildURL(origin, path string) (string, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOrigin, err)
	}

	var scheme string
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
		scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidOrigin, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidOrigin)
	}
	if path == "" {
		path = "/"
	}

	return (&url.URL{Scheme: scheme, Host: u.Host, Path: path}).String(), nil
}
