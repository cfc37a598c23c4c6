package prices

import "github.com/aman-zulfiqar/token-aggregator/internal/models"

// Outcome is the result class of one address lookup against one source.
type Outcome int

const (
	// NotFound means the source answered and has no price for the address.
	NotFound Outcome = iota
	// Found means the source returned data for the address.
	Found
	// Failed means the source could not be asked or did not answer.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Failed:
		return "failed"
	default:
		return "not_found"
	}
}

// Lookup is the per-address result of one source pass.
type Lookup struct {
	Outcome Outcome
	Info    models.PriceInfo
	// Stale is set when Info came from an expired cache entry after the
	// source kept rate limiting.
	Stale bool
	Err   error
}
