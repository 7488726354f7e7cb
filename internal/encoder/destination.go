package encoder

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoStreamKey is returned when a destination has neither a key nor a
// full URL carrying one.
var ErrNoStreamKey = errors.New("stream key is not configured")

// Destination is the RTMP ingestion endpoint. Key is a broadcast secret.
type Destination struct {
	BaseURL string
	Key     string
}

// URL returns the full push URL including the key.
func (d Destination) URL() string {
	if d.Key == "" {
		return d.BaseURL
	}
	return strings.TrimRight(d.BaseURL, "/") + "/" + d.Key
}

// Redacted returns the push URL with the key masked, safe for logs.
func (d Destination) Redacted() string {
	if d.Key == "" {
		return d.BaseURL
	}
	return strings.TrimRight(d.BaseURL, "/") + "/****"
}

// Validate checks the URL scheme and that a key is present.
func (d Destination) Validate() error {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid stream url: %w", err)
	}
	switch u.Scheme {
	case "rtmp", "rtmps":
	default:
		return fmt.Errorf("unsupported stream url scheme %q (want rtmp or rtmps)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("stream url %q has no host", d.BaseURL)
	}
	if d.Key == "" {
		return ErrNoStreamKey
	}
	return nil
}

// RedactedArgs returns a copy of args with the push URL of d masked.
func RedactedArgs(args []string, d Destination) []string {
	out := make([]string, len(args))
	full := d.URL()
	for i, a := range args {
		if a == full && d.Key != "" {
			out[i] = d.Redacted()
			continue
		}
		out[i] = a
	}
	return out
}
