// Package entry stores the config entries created by pairing OBEGRÄNSAD
// displays.
//
// An entry is the durable record of one paired display: its unique id is
// the host the user submitted, and its data holds that host. The pairing
// flow consults the Registry to reject duplicates and to persist new
// entries; the display bridge reads it to know which displays to poll.
//
// Architecture:
//
//	flow.Handler ──► Registry (RWMutex cache) ──► Repository ──► SQLite
//	bridge.Bridge ─┘
//
// Entries are immutable once created; re-pairing means deleting the entry
// and running the flow again.
package entry
