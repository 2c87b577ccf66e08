package domain

import (
	"context"
	"time"
)

// ConversionRequest is one consumer-submitted batch of product names.
type ConversionRequest struct {
	// ID names the request's scratch directory. Assigned on arrival when the
	// submitter did not provide one.
	ID string

	// Recipients receive the rendered report.
	Recipients []string

	// Products are the raw product names to serve as NetCDF.
	Products []string

	ReceivedAt time.Time

	// Commit acknowledges the request with its source once fully handled.
	// Nil for synchronous submissions.
	Commit func(ctx context.Context) error `json:"-"`
}

// Tier identifies where an artifact was found.
type Tier string

const (
	TierScratch     Tier = "scratch"
	TierOperational Tier = "operational"
	TierPool        Tier = "pool"
)

// ArtifactRef is a located artifact: the tier it was found in, the usable
// filesystem path, its last-modified time, and the OPeNDAP locator downstream
// consumers are handed.
type ArtifactRef struct {
	Tier      Tier      `json:"tier"`
	Path      string    `json:"path"`
	ModTime   time.Time `json:"mod_time"`
	AccessURL string    `json:"access_url"`
}

// ResolutionOutcome is the per-product result of a tier lookup. Ref is valid
// only when Found is true; a miss is a normal outcome, not an error.
type ResolutionOutcome struct {
	Found bool        `json:"found"`
	Ref   ArtifactRef `json:"ref,omitzero"`
}

// Report aggregates one request's outcomes for notification.
type Report struct {
	RequestID   string    `json:"request_id"`
	Recipients  []string  `json:"recipients"`
	Subject     string    `json:"subject"`
	Links       []string  `json:"links"`
	Failures    []string  `json:"failures"`
	Body        string    `json:"body"`
	GeneratedAt time.Time `json:"generated_at"`
}
