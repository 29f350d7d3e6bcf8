// Package core is the orchestration layer.  It composes a pool backend,
// the channel protocol and the ambient stack into complete operational
// modes, and provides a builder that selects the right mode from a
// Config.
//
// Architecture layers (bottom → top):
//
//	transport  →  pool  →  channel  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete operational mode of connpulse (auto,
// manual or serve).  Each mode owns its full lifecycle from opening the
// pool to releasing it.
type Mode interface {
	Run(ctx context.Context) error
}
