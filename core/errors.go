package core

import "errors"

// Error kinds shared by every package. Wrap them with fmt.Errorf("...: %w")
// and test with errors.Is.
var (
	// ErrInvalidArgument reports an out-of-range or inconsistent argument.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNullReference reports a required argument that was nil.
	ErrNullReference = errors.New("null reference")
	// ErrNotFound reports a missing scene file or profile.
	ErrNotFound = errors.New("not found")
	// ErrIOFailure reports a read or write failure.
	ErrIOFailure = errors.New("io failure")
	// ErrInvariant reports a broken scene graph: a cycle, a dangling
	// reference or an out-of-range mesh index.
	ErrInvariant = errors.New("invariant violation")
	// ErrBusy reports a batch started while another is running.
	ErrBusy = errors.New("busy")
)
