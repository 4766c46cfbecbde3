package rolling

import "github.com/bobboyms/rollstore/pkg/substrate"

// RollingHandle is the in-memory view of one logical segment. It is
// created by RollingStore.OpenRead/OpenWrite and lives until the
// caller stops using it; RollingStore methods mutate it in place.
//
// Two handles to the same logical name may coexist and diverge; only
// the durable header (or, for legacy segments, substrate Stat) is
// authoritative. See the refresh protocol in read_write.go.
type RollingHandle struct {
	SegmentName string

	// HasHeader is false for legacy segments: a single sub-segment
	// with no backing header blob.
	HasHeader  bool
	HeaderName string

	Policy RollingPolicy

	// SubSegments is ordered by StartOffset, ascending.
	SubSegments []SubSegment

	// HeaderEntryCount is the number of top-level entries appended to
	// this handle's header so far (NewSubSegment or ConcatBegin each
	// count as one, regardless of how many sub-segments a ConcatBegin
	// flattens to). Needed to emit a correct entry_count if this
	// handle is later used as a concat source.
	HeaderEntryCount int

	// HeaderLength is the durable byte length of the header blob.
	HeaderLength int64

	// ActiveWriter is the substrate handle to the tail sub-segment,
	// non-nil only on a writable, non-sealed handle once a tail
	// exists.
	ActiveWriter substrate.Handle

	// HeaderWriteHandle is the substrate handle used to append
	// entries to the header blob, non-nil only on a writable,
	// non-sealed, header-backed handle.
	HeaderWriteHandle substrate.Handle

	ReadOnly bool
	Sealed   bool
	Deleted  bool
}

// Length is the logical length of the segment: the tail's last
// offset, or 0 if there are no sub-segments yet.
func (h *RollingHandle) Length() int64 {
	if len(h.SubSegments) == 0 {
		return 0
	}
	return h.SubSegments[len(h.SubSegments)-1].LastOffset()
}

func (h *RollingHandle) tail() *SubSegment {
	if len(h.SubSegments) == 0 {
		return nil
	}
	return &h.SubSegments[len(h.SubSegments)-1]
}

// SegmentInfo is the result of RollingStore.Info.
type SegmentInfo struct {
	Name   string
	Sealed bool
	Length int64
}
