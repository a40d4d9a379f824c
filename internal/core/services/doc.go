// Package services implements the core pipeline: ingestion with
// version control, feed lifecycle (soft-delete, restore, history),
// and semantic similarity search. Services implement the driving
// ports and depend only on driven ports.
package services
