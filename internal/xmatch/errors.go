package xmatch

import "errors"

// ErrNoMatches is returned when no candidate tuple survives radius
// filtering: the fatal "No matches." condition spec.md §7 documents.
var ErrNoMatches = errors.New("xmatch: no matches")

// ErrSchema covers malformed or missing catalogue columns/headers.
var ErrSchema = errors.New("xmatch: schema error")

// ErrConfiguration covers invalid or inconsistent run configuration.
var ErrConfiguration = errors.New("xmatch: configuration error")

// ErrNumeric covers non-finite results arising from the scoring math
// (e.g. a catalogue with zero declared sky area).
var ErrNumeric = errors.New("xmatch: numeric error")
