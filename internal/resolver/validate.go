package resolver

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cutroom/cutroom-engine/internal/config"
)

// Schemes that can smuggle script execution into a media element context.
var unsafeSchemes = map[string]bool{
	"javascript": true,
	"vbscript":   true,
	"file":       true,
}

// validate applies the security gate to a candidate playable URL.
// Locally sourced blob/data-media URLs and same-origin URLs are always
// trusted; cross-origin URLs go through the configured policy.
func (r *Resolver) validate(raw string) (Resolution, error) {
	lower := strings.ToLower(strings.TrimSpace(raw))

	if strings.HasPrefix(lower, "blob:") {
		return Resolution{URL: raw}, nil
	}
	if strings.HasPrefix(lower, "data:") {
		if strings.HasPrefix(lower, "data:image/") ||
			strings.HasPrefix(lower, "data:video/") ||
			strings.HasPrefix(lower, "data:audio/") {
			return Resolution{URL: raw}, nil
		}
		return Resolution{}, fmt.Errorf("%w: non-media data URL", ErrSecurityBlocked)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: unparseable url: %v", ErrResolution, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if unsafeSchemes[scheme] {
		return Resolution{}, fmt.Errorf("%w: scheme %q not allowed", ErrSecurityBlocked, scheme)
	}
	if scheme != "http" && scheme != "https" && scheme != "" {
		return Resolution{}, fmt.Errorf("%w: scheme %q not allowed", ErrSecurityBlocked, scheme)
	}

	// Relative and loopback URLs are same-origin by construction.
	host := strings.ToLower(u.Hostname())
	if host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return Resolution{URL: raw}, nil
	}

	if r.allowedOrigins[host] {
		return Resolution{URL: raw}, nil
	}

	switch r.policy {
	case config.PolicyPermissive:
		if r.logger != nil {
			r.logger.Warn("allowing unlisted cross-origin url", "host", host)
		}
		return Resolution{URL: raw}, nil
	case config.PolicyCustom:
		return Resolution{URL: raw, Anonymous: true}, nil
	default:
		return Resolution{}, fmt.Errorf("%w: origin %q not in allow-list", ErrSecurityBlocked, host)
	}
}
