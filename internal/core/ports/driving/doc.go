// Package driving provides interfaces for inbound adapters (primary ports).
// The CLI and HTTP surfaces call these; core services implement them.
package driving
