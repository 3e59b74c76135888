package enrichment

import "errors"

// ErrDeferred means the metadata service kept rate limiting after the one
// allowed retry. The album is left as it was for the next sweep.
var ErrDeferred = errors.New("enrichment deferred: metadata service rate limited")

// State is an album's enrichment state for one metadata source.
type State int

const (
	StateUnresolved State = iota
	StateFresh
	StateStale
	StateLookupInFlight
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateLookupInFlight:
		return "lookup_in_flight"
	default:
		return "unknown"
	}
}

// Outcome is the result of one EnrichAlbum call.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeMatched
	OutcomeNoMatch
	OutcomeDeferred
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMatched:
		return "matched"
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeDeferred:
		return "deferred"
	default:
		return "unknown"
	}
}
