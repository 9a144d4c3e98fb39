// Package content holds the post lifecycle model and the projection of joined
// store rows into render-ready views.
//
// Everything here is pure: no I/O, no logging, no globals.
package content

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// State is the lifecycle state of a post.
type State int

const (
	Draft State = iota + 1
	Published
	Trashed
)

// storage forms, as written in post.state
const (
	stateDraft     = "draft"
	statePublished = "published"
	stateTrashed   = "trashed"
)

// UnknownStateError reports a stored state outside draft, published and
// trashed. The store is the only producer of these strings, so seeing one
// means the data is corrupt.
type UnknownStateError struct {
	Raw string
}

func (e *UnknownStateError) Error() string {
	return fmt.Sprintf("unknown post state %q", e.Raw)
}

// ParseState maps a stored state string to a State. It never falls back to a
// default: anything unrecognised is an *UnknownStateError.
func ParseState(raw string) (State, error) {
	switch raw {
	case stateDraft:
		return Draft, nil
	case statePublished:
		return Published, nil
	case stateTrashed:
		return Trashed, nil
	}

	return 0, &UnknownStateError{Raw: raw}
}

// String returns the storage form, which ParseState accepts back.
func (s State) String() string {
	switch s {
	case Draft:
		return stateDraft
	case Published:
		return statePublished
	case Trashed:
		return stateTrashed
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Label returns the display form, e.g. "Published".
func (s State) Label() string {
	// a Caser is stateful and must not be shared between goroutines
	return cases.Title(language.English).String(s.String())
}

// Valid reports whether s is one of the declared states.
func (s State) Valid() bool {
	return s >= Draft && s <= Trashed
}

// IsPublic reports whether posts in this state belong on the public listing.
func (s State) IsPublic() bool {
	return s == Published
}
