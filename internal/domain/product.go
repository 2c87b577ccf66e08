package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Parse failures. Each is fatal for the single product name it concerns and
// never aborts the rest of a request.
var (
	// ErrMalformedName means the name carries no parseable acquisition date.
	ErrMalformedName = errors.New("no acquisition date token in product name")

	// ErrUnsupportedPlatform means the leading token is outside the S1/S2 families.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrMissingMode means an S1 name lacks the beam mode segment.
	ErrMissingMode = errors.New("missing beam mode segment")
)

// dateTokenRe matches the acquisition date embedded in every Sentinel product
// name: an 8-digit date immediately followed by "T", e.g. "20230615T101031".
var dateTokenRe = regexp.MustCompile(`(\d{8})T`)

// Product is a parsed Sentinel product name. Values are immutable once parsed;
// a Product is only ever constructed through ParseProductName.
type Product struct {
	// Name is the raw product name, e.g. "S2A_MSIL1C_20230615T101031_...".
	Name string

	// Platform is the leading token, e.g. "S1A" or "S2B".
	Platform string

	// Date is the acquisition date (midnight UTC).
	Date time.Time

	// Mode is the beam mode for Sentinel-1 products ("IW", "EW", ...).
	// Empty for Sentinel-2.
	Mode string
}

// ParseProductName parses a raw Sentinel product name. It fails with
// ErrMalformedName, ErrUnsupportedPlatform or ErrMissingMode; a failed parse
// never yields a partial Product.
func ParseProductName(raw string) (Product, error) {
	m := dateTokenRe.FindStringSubmatch(raw)
	if m == nil {
		return Product{}, fmt.Errorf("parse product name %q: %w", raw, ErrMalformedName)
	}
	date, err := time.Parse("20060102", m[1])
	if err != nil {
		return Product{}, fmt.Errorf("parse product name %q: %w", raw, ErrMalformedName)
	}

	segments := strings.Split(raw, "_")
	platform := segments[0]

	p := Product{
		Name:     raw,
		Platform: platform,
		Date:     date,
	}

	switch {
	case strings.HasPrefix(platform, "S1"):
		if len(segments) < 2 {
			return Product{}, fmt.Errorf("parse product name %q: %w", raw, ErrMissingMode)
		}
		p.Mode = segments[1]
	case strings.HasPrefix(platform, "S2"):
		// No beam mode for Sentinel-2.
	default:
		return Product{}, fmt.Errorf("parse product name %q: %w", raw, ErrUnsupportedPlatform)
	}

	return p, nil
}
