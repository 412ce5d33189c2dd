package entry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Fixed attributes of every entry this integration creates.
const (
	// Domain identifies the integration that owns an entry.
	Domain = "ikea_obegraensad"

	// SchemaVersion is the version of the entry data layout.
	SchemaVersion = 1

	// SourceUser marks entries created through the interactive pairing flow.
	SourceUser = "user"

	// titleFormat renders the display title from its host.
	titleFormat = "IKEA OBEGRÄNSAD LED (%s)"
)

// Entry is one paired display.
type Entry struct {
	ID        string    `json:"id"`
	UniqueID  string    `json:"unique_id"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	Data      Data      `json:"data"`
	Version   int       `json:"version"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Data is the payload persisted with an entry.
type Data struct {
	Host string `json:"host"`
}

// Title returns the entry title for a display at host.
func Title(host string) string {
	return fmt.Sprintf(titleFormat, host)
}

// New builds an unsaved entry for a display at host, keyed by the host.
func New(host string) *Entry {
	return &Entry{
		UniqueID: host,
		Domain:   Domain,
		Title:    Title(host),
		Data:     Data{Host: host},
		Version:  SchemaVersion,
		Source:   SourceUser,
	}
}

// DeepCopy returns an independent copy. Entry holds no reference types,
// so a value copy suffices.
func (e *Entry) DeepCopy() *Entry {
	if e == nil {
		return nil
	}
	cpy := *e
	return &cpy
}

// GenerateID returns a new random entry ID.
func GenerateID() string {
	return uuid.New().String()
}
