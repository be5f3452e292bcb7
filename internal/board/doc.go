// Package board owns the shared bulletin board state.
//
// Ownership boundary:
// - note placement (bounds, palette, complete overlap)
//
// - pin set and derived pinned status
//
// - shake/clear bulk removal
//
// - filtered note queries
//
// Every exported Board method runs as one critical section under a single mutex.
// Notes and pins are never locked separately: pin validity depends on notes.
//
// Board does no I/O. Wire formatting lives in internal/protocol.
package board
