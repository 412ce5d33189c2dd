package entry

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the maximum length of an entry title in characters.
const MaxTitleLength = 255

// ValidateEntry checks an entry before it is persisted.
func ValidateEntry(e *Entry) error {
	if e == nil {
		return ErrInvalidEntry
	}
	if strings.TrimSpace(e.UniqueID) == "" {
		return fmt.Errorf("%w: unique_id is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Data.Host) == "" {
		return fmt.Errorf("%w: data.host is required", ErrInvalidEntry)
	}
	if e.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidEntry)
	}
	if utf8.RuneCountInString(e.Title) > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters", ErrInvalidEntry, MaxTitleLength)
	}
	if e.Domain != Domain {
		return fmt.Errorf("%w: domain %q", ErrInvalidEntry, e.Domain)
	}
	return nil
}
