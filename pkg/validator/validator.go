package validator

import (
	"net/url"
	"strings"
)

// Destination validates candidate redirect targets against a host allowlist.
// It never rejects a request outright: anything that fails validation is
// replaced by the configured fallback URL, so the caller always has a usable
// destination.
//
// An empty allowlist means any host is accepted. Combined with the fallback
// policy this makes the service an open redirector when ALLOWED_HOSTS is
// unset - that is deliberate, configurable behavior, not a bug.
type Destination struct {
	allowed  map[string]struct{}
	fallback string
}

// NewDestination creates a destination validator.
// Hostnames are matched case-insensitively; entries are lowercased here so
// Resolve only lowercases the candidate side.
func NewDestination(allowedHosts []string, fallback string) *Destination {
	allowed := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			allowed[h] = struct{}{}
		}
	}
	return &Destination{
		allowed:  allowed,
		fallback: fallback,
	}
}

// Resolve returns raw unmodified if it passes validation, otherwise the
// fallback URL. Accepted values are passed through byte for byte - no
// normalization, so query strings and fragments survive intact.
func (d *Destination) Resolve(raw string) string {
	if err := d.check(raw); err != nil {
		return d.fallback
	}
	return raw
}

// Check reports why a candidate would be rejected, or nil if it is accepted.
// Resolve is the hot-path entry point; Check exists so callers can label
// fallback substitutions by reason.
func (d *Destination) Check(raw string) error {
	return d.check(raw)
}

// Fallback returns the configured safe fallback URL.
func (d *Destination) Fallback() string {
	return d.fallback
}

func (d *Destination) check(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}

	// url.Parse lowercases the scheme, so a plain comparison is enough.
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidScheme
	}

	if parsed.Host == "" {
		return ErrInvalidURL
	}

	if len(d.allowed) > 0 {
		host := strings.ToLower(parsed.Hostname())
		if _, ok := d.allowed[host]; !ok {
			return ErrHostNotAllowed
		}
	}

	return nil
}
