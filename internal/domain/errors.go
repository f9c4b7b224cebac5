package domain

import "errors"

var (
	// ErrConnection means the store could not reach or authenticate to the database.
	ErrConnection = errors.New("database connection failed")
	// ErrValidation means the request was rejected before touching the database.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means no document matched the identifier.
	ErrNotFound = errors.New("not found")
	// ErrReferentialIntegrity means a delete was blocked by a live reference.
	ErrReferentialIntegrity = errors.New("referenced by existing records")
)

// Kind names an error class on the wire.
type Kind string

const (
	KindConnection           Kind = "connection"
	KindValidation           Kind = "validation"
	KindNotFound             Kind = "not_found"
	KindReferentialIntegrity Kind = "referential_integrity"
	KindUnknownChannel       Kind = "unknown_channel"
	KindInternal             Kind = "internal"
)

// ErrUnknownChannel is returned for channels outside the fixed set.
var ErrUnknownChannel = errors.New("unknown channel")

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrConnection, KindConnection},
	{ErrValidation, KindValidation},
	{ErrNotFound, KindNotFound},
	{ErrReferentialIntegrity, KindReferentialIntegrity},
	{ErrUnknownChannel, KindUnknownChannel},
}

// KindOf classifies err. Anything unrecognized is internal.
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// SentinelFor is the inverse of KindOf; internal maps to nil.
func SentinelFor(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}
