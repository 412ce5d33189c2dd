// Package audit records pairing activity in the audit_logs table.
//
// Entries created by a pairing flow and entries removed through the API or
// CLI each leave one row. The log is append-only; List pages through it newest first.
package audit
