// Package validate checks user input before it reaches the scheduling core.
package validate

import (
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/manav03panchal/timegrid/internal/errors"
)

const (
	// MaxSIDLength is the maximum length for a simplified ID.
	MaxSIDLength = 32
	// MaxURLLength is the maximum length for a URL.
	MaxURLLength = 2048
	// MaxNameLength is the maximum length for a display name.
	MaxNameLength = 128
	// MaxLabelLength is the maximum length for an allocation label.
	MaxLabelLength = 256
	// MaxHours bounds a single allocation's effort (one 21-day grid, around the clock).
	MaxHours = 21 * 24
)

// sidRegex validates simplified IDs (alphanumeric, dashes, underscores, periods).
// Colons are excluded because they separate database key segments.
var sidRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// SID validates a simplified ID of a project, user or client.
func SID(sid string) error {
	if sid == "" {
		return errors.NewUserError("SID cannot be empty", "Provide a valid identifier")
	}
	if len(sid) > MaxSIDLength {
		return errors.NewUserErrorWithField("sid", sid,
			"SID too long",
			fmt.Sprintf("SIDs must be %d characters or fewer", MaxSIDLength))
	}
	if !sidRegex.MatchString(sid) {
		return errors.NewValidationError(errors.ErrInvalidSID, "sid", sid)
	}
	return nil
}

// Name validates the display name of a directory entity.
func Name(kind, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.NewUserError(kind+" name cannot be empty", "Provide a "+kind+" name")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return errors.NewUserErrorWithField(kind, name,
			kind+" name too long",
			fmt.Sprintf("Names must be %d characters or fewer", MaxNameLength))
	}
	return nil
}

// Label validates an allocation label. Empty is allowed.
func Label(label string) error {
	if utf8.RuneCountInString(label) > MaxLabelLength {
		return errors.NewUserError("Label too long",
			fmt.Sprintf("Labels must be %d characters or fewer", MaxLabelLength))
	}
	if strings.ContainsAny(label, "\r\n") {
		return errors.NewUserErrorWithField("label", label, "Label must be a single line", "")
	}
	return nil
}

// Hours validates an effort in hours: finite, positive and at most MaxHours.
func Hours(h float64) error {
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return errors.NewValidationError(errors.ErrInvalidHours, "hours", fmt.Sprint(h))
	}
	if h > MaxHours {
		return errors.NewUserErrorWithField("hours", fmt.Sprint(h),
			"hours out of range",
			fmt.Sprintf("A single allocation holds at most %d hours", MaxHours))
	}
	return nil
}

// HexColor validates a #RRGGBB color. Empty is allowed (no color).
func HexColor(color string) error {
	if color == "" {
		return nil
	}
	hex, ok := strings.CutPrefix(color, "#")
	if !ok || len(hex) != 6 {
		return errors.NewValidationError(errors.ErrInvalidColor, "color", color)
	}
	for _, c := range hex {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return errors.NewValidationError(errors.ErrInvalidColor, "color", color)
		}
	}
	return nil
}

// URL validates a URL for use as a webhook endpoint.
func URL(rawURL string) error {
	if rawURL == "" {
		return errors.NewUserError("URL cannot be empty", "Provide a valid URL")
	}
	if len(rawURL) > MaxURLLength {
		return errors.NewUserError("URL too long", "URLs must be 2048 characters or fewer")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL format",
			"Provide a valid URL starting with https://")
	}

	// Check scheme
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL scheme",
			"URLs must use https:// (or http:// for localhost)")
	}

	// Check hostname exists
	hostname := parsed.Hostname()
	if hostname == "" {
		return errors.NewUserErrorWithField("url", rawURL,
			"Invalid URL: missing hostname",
			"Provide a valid URL like https://example.com/webhook")
	}

	// Check for localhost (http allowed)
	isLocalhost := hostname == "localhost" || hostname == "127.0.0.1" || hostname == "::1"

	// Require HTTPS for non-localhost
	if parsed.Scheme == "http" && !isLocalhost {
		return errors.NewUserErrorWithField("url", rawURL,
			"HTTP not allowed for external URLs",
			"Use https:// for security. HTTP is only allowed for localhost.")
	}

	// Check for internal IPs (SSRF protection)
	if !isLocalhost {
		if err := checkInternalIP(hostname); err != nil {
			return err
		}
	}

	return nil
}

// checkInternalIP checks if a hostname resolves to an internal IP.
func checkInternalIP(hostname string) error {
	// First check if it's a direct IP
	if ip := net.ParseIP(hostname); ip != nil {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Internal IP addresses not allowed",
				"Webhook URLs must point to external services")
		}
		return nil
	}

	// Try to resolve hostname
	ips, err := net.LookupIP(hostname)
	if err != nil {
		// DNS resolution failed - this is OK, the webhook will fail later
		return nil
	}

	for _, ip := range ips {
		if isInternalIP(ip) {
			return errors.NewUserErrorWithField("url", hostname,
				"Hostname resolves to internal IP",
				"Webhook URLs must point to external services")
		}
	}

	return nil
}

// isInternalIP checks if an IP is in a private/internal range.
func isInternalIP(ip net.IP) bool {
	// Private ranges
	privateRanges := []string{
		"10.0.0.0/8",     // RFC 1918
		"172.16.0.0/12",  // RFC 1918
		"192.168.0.0/16", // RFC 1918
		"127.0.0.0/8",    // Loopback (except explicit localhost check)
		"169.254.0.0/16", // Link-local
		"fc00::/7",       // IPv6 private
		"fe80::/10",      // IPv6 link-local
		"::1/128",        // IPv6 loopback
	}

	for _, cidr := range privateRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}

	return false
}

// OneOf validates that value is one of allowed.
func OneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errors.NewUserErrorWithField(field, value,
		"invalid "+field,
		"Use one of: "+strings.Join(allowed, ", "))
}
