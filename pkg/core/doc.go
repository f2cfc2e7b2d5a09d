// Package core defines the shared language of the Ballotbox system.
//
// This package contains:
//   - Wire entities (Condition, Request, Result, Payload, Table)
//   - History entities (Visit, Vote)
//   - Service interfaces (HistoryStore)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
