package catalog

import (
	"errors"

	"github.com/cesargomez89/playledger/internal/store"
)

var (
	// ErrStoreContract is fatal for one entity: the store rejected a
	// well-formed write with neither a row nor a conflict.
	ErrStoreContract = errors.New("catalog: store contract violation")
	// ErrTransient wraps store failures the caller may retry later.
	ErrTransient = errors.New("catalog: transient store failure")
	// ErrInvalidObservation marks an observation that cannot form an identity key.
	ErrInvalidObservation = errors.New("catalog: invalid observation")
)

// Kind groups errors by how the pipeline reacts to them.
type Kind int

const (
	KindNone Kind = iota
	KindTransient
	KindConflict
	KindAnomaly
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindAnomaly:
		return "anomaly"
	case KindFatal:
		return "fatal"
	}
	return "unknown"
}

// Classify maps an error from resolution or recording onto a Kind.
// Anything not recognized is treated as transient.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrStoreContract):
		return KindFatal
	case errors.Is(err, ErrInvalidObservation):
		return KindAnomaly
	case errors.Is(err, store.ErrConflict):
		return KindConflict
	}
	return KindTransient
}
