package domain

// RetentionDecision says what to do with an operational-tier hit of a given age.
type RetentionDecision int

const (
	// RetentionServe: use the operational copy directly, no copy needed.
	RetentionServe RetentionDecision = iota

	// RetentionMirror: the artifact is close enough to operational eviction
	// that it must be copied into scratch, where it gets a fresh retention clock.
	RetentionMirror

	// RetentionExpired: past the operational window; treat as absent even if
	// the file is still physically present.
	RetentionExpired
)

// String returns the decision name for logs.
func (d RetentionDecision) String() string {
	switch d {
	case RetentionServe:
		return "serve"
	case RetentionMirror:
		return "mirror"
	case RetentionExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// EvaluateRetention applies the tier freshness policy to an artifact age.
// Ages and windows are whole days. The mirror comparison is strictly
// less-than: a remaining lifetime exactly equal to the scratch window still
// serves the operational copy.
func EvaluateRetention(ageDays, operationalDays, scratchDays int) RetentionDecision {
	if ageDays >= operationalDays {
		return RetentionExpired
	}
	if operationalDays-ageDays < scratchDays {
		return RetentionMirror
	}
	return RetentionServe
}
