package rolling

import "fmt"

// SubSegment is a pure value type: one physical blob backing a
// contiguous offset range of a logical segment.
//
// Invariants (enforced by RollingStore, not by this type itself):
// within a handle, StartOffset is strictly increasing; for all
// non-tail entries StartOffset[i]+Length[i] == StartOffset[i+1]; all
// non-tail entries are sealed; Length >= 0; Exists=false is a
// one-way transition.
type SubSegment struct {
	Name        string
	StartOffset int64
	Length      int64
	Sealed      bool
	Exists      bool
}

// LastOffset is the offset one past the last byte this sub-segment
// holds.
func (s SubSegment) LastOffset() int64 {
	return s.StartOffset + s.Length
}

// Contains reports whether the logical offset off falls within this
// sub-segment's range.
func (s SubSegment) Contains(off int64) bool {
	return off >= s.StartOffset && off < s.LastOffset()
}

// Rebase returns a copy of s with a new start offset, keeping length
// and sealed state. Used when splicing a source's sub-segment table
// into a target during header-merge concat.
func (s SubSegment) Rebase(newStart int64) SubSegment {
	return SubSegment{
		Name:        s.Name,
		StartOffset: newStart,
		Length:      s.Length,
		Sealed:      s.Sealed,
		Exists:      s.Exists,
	}
}

// headerName derives the name of the durable header blob for a
// logical segment name. Deterministic and collision-free: no logical
// name can itself end in this suffix without colliding, which callers
// avoid by using the logical segment namespace exclusively through
// RollingStore (the legacy main blob uses the bare logical name with
// no suffix at all).
func headerName(logicalName string) string {
	return logicalName + ".header"
}

// subName derives the name of the sub-segment blob starting at
// startOffset within logicalName. Fixed-width zero-padded decimal
// keeps it injective on (logicalName, startOffset) and lexicographic
// order matches offset order, which is a convenient (if unused by the
// core) property for substrates that list blobs by name.
func subName(logicalName string, startOffset int64) string {
	return fmt.Sprintf("%s.sub.%020d", logicalName, startOffset)
}
