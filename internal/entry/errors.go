package entry

import "errors"

// Domain errors for the entry package.
//
//	if errors.Is(err, entry.ErrEntryExists) {
//	    // already paired
//	}
var (
	// ErrEntryNotFound is returned when an entry ID or unique ID does not exist.
	ErrEntryNotFound = errors.New("entry: not found")

	// ErrEntryExists is returned when creating an entry whose ID or unique ID is taken.
	ErrEntryExists = errors.New("entry: already exists")

	// ErrInvalidEntry is returned when entry validation fails.
	ErrInvalidEntry = errors.New("entry: invalid")
)
