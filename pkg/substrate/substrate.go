// Package substrate defines the synchronous blob-storage capability
// that the rolling storage core (pkg/rolling) consumes. It never
// depends on a concrete implementation: the rolling layer is
// parameterized over this interface alone, the way the teacher's
// storage engine is parameterized over nothing lower than the OS file
// API — here we go one layer further and make that boundary explicit
// so an in-memory fixture and a real filesystem implementation can
// both satisfy it.
package substrate

import "fmt"

// Handle is an opaque reference to an open blob, returned by
// OpenRead/OpenWrite and consumed by Read, Write, Seal, Concat,
// Delete and Close. Implementations embed whatever OS or network
// resource they need; the rolling layer only ever calls Name().
type Handle interface {
	Name() string
}

// Stat describes a blob's durable state.
type Stat struct {
	Name   string
	Length int64
	Sealed bool
}

// Substrate is the capability record the rolling layer depends on.
// Every method is synchronous and blocks on the caller's goroutine;
// there is no internal scheduler (§5 of the core spec).
type Substrate interface {
	// Create makes a new, empty, unsealed blob. Fails with
	// *rollerrors.AlreadyExistsError if a blob by this name exists.
	Create(name string) error

	// OpenRead opens an existing blob for reading.
	OpenRead(name string) (Handle, error)

	// OpenWrite opens an existing blob for appending/sealing/deleting.
	OpenWrite(name string) (Handle, error)

	// Read reads into buf starting at offset, returning the number of
	// bytes read. Never reads past the blob's current length.
	Read(h Handle, offset int64, buf []byte) (int, error)

	// Write appends data at offset, which must equal the blob's
	// current length (*rollerrors.BadOffsetError otherwise).
	Write(h Handle, offset int64, data []byte) (int, error)

	// Seal marks the blob read-only.
	Seal(h Handle) error

	// Concat atomically appends the blob named sourceName to target
	// at offset (which must equal target's current length) and
	// deletes the source. Fails if target is sealed or sourceName
	// does not exist.
	Concat(target Handle, offset int64, sourceName string) error

	// Delete removes the blob. Idempotent: deleting an
	// already-deleted blob returns *rollerrors.NotExistsError.
	Delete(h Handle) error

	// Exists reports whether a blob by this name currently exists.
	Exists(name string) (bool, error)

	// Stat returns the blob's durable state.
	Stat(name string) (Stat, error)

	// Close releases the resources behind a handle without altering
	// the blob. Safe to call more than once.
	Close(h Handle) error
}

// nameHandle is the trivial Handle used by substrates that need no
// extra bookkeeping beyond the blob name to serve Read/Write.
type nameHandle string

func (n nameHandle) Name() string { return string(n) }

func (n nameHandle) String() string { return fmt.Sprintf("handle(%s)", string(n)) }
