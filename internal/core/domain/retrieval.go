package domain

import "time"

// RetrievalConfig holds the two-tier similarity search parameters. The
// acceptance threshold lives here and nowhere else; both the retrieval
// engine and the query endpoint read the same verdict.
type RetrievalConfig struct {
	// MinAcceptance is the top similarity required to treat results as
	// sufficient grounding for an answer.
	MinAcceptance float64

	// StrictThreshold and StrictCount parameterise the first-pass query.
	StrictThreshold float64
	StrictCount     int

	// FallbackThreshold and FallbackCount parameterise the looser
	// second-pass query issued when the strict pass comes up weak.
	FallbackThreshold float64
	FallbackCount     int

	// MergedCap bounds the merged strict+fallback result set.
	MergedCap int

	// StrictTimeout and FallbackTimeout budget the two search calls.
	// The fallback gets a longer budget since it scans more rows.
	StrictTimeout   time.Duration
	FallbackTimeout time.Duration
}

// DefaultRetrievalConfig returns the documented defaults.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MinAcceptance:     0.35,
		StrictThreshold:   0.25,
		StrictCount:       8,
		FallbackThreshold: 0.10,
		FallbackCount:     20,
		MergedCap:         12,
		StrictTimeout:     5 * time.Second,
		FallbackTimeout:   7 * time.Second,
	}
}

// RetrievalOutcome is what one retrieval turn produced, including the
// centralised sufficiency verdict.
type RetrievalOutcome struct {
	Results       []RetrievalResult
	TopSimilarity float64

	// Sufficient is true when results exist and the top similarity meets
	// the acceptance threshold.
	Sufficient bool

	// Reason is set when Sufficient is false.
	Reason InsufficientReason
}
