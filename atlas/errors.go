package atlas

import "errors"

// Non-fatal error kinds. All other index/page invariant violations are
// enforced with hard assertions (panics) — a corrupt state is fatal.
var (
	// ErrAtlasFull is returned by Allocate when no page has a free slot.
	// The caller is expected to trigger eviction before retrying.
	ErrAtlasFull = errors.New("atlas: full")

	// ErrNotFound is returned by Resolve when the key is absent from its
	// shard's index.
	ErrNotFound = errors.New("atlas: key not found")

	// ErrGenerationMismatch is returned by Resolve when the key's
	// generation no longer matches the slot's current generation.
	ErrGenerationMismatch = errors.New("atlas: generation mismatch")
)

// TileSetError wraps a failure from a multi-key operation (ReleaseSetAtomic)
// that must leave observable state unchanged on any mid-operation failure.
type TileSetError struct {
	Op    string
	Cause error
}

func (e *TileSetError) Error() string { return "atlas: " + e.Op + ": " + e.Cause.Error() }
func (e *TileSetError) Unwrap() error { return e.Cause }

// GpuDrainError is returned by DrainAndExecute when a GPU upload or clear
// fails. Classified as unrecoverable: the CPU-side index and the GPU
// texture have diverged.
type GpuDrainError struct {
	Cause error
}

func (e *GpuDrainError) Error() string { return "atlas: gpu drain failed: " + e.Cause.Error() }
func (e *GpuDrainError) Unwrap() error { return e.Cause }
