package rolling

import rollerrors "github.com/bobboyms/rollstore/pkg/errors"

// Truncate discards every sub-segment entirely below truncationOffset,
// per §4.3. A sub-segment that straddles truncationOffset is never
// deleted, even though bytes below the threshold inside it become
// logically unreachable: the core has no sub-blob-range primitive, and
// losing sealed, chained history for the sake of precision would break
// the length/offset invariants downstream readers depend on.
//
// A full truncation (truncationOffset >= h.Length()) additionally rolls
// the tail over first, so every existing sub-segment becomes eligible
// for deletion and future writes start a fresh one; a partial
// truncation leaves the current tail exactly as it is. No-op for
// legacy segments: a legacy handle has no header to make a chain of
// sub-segments meaningful, so truncate can't safely replace its single
// blob.
//
// Length() is an append offset, not a count of reachable bytes: a full
// truncation drops every data-bearing sub-segment but leaves the
// coordinate system where it was, so a subsequent Write still appends
// at the same offset rather than at 0.
func (s *RollingStore) Truncate(h *RollingHandle, truncationOffset int64) error {
	if h.Deleted {
		return &rollerrors.NotExistsError{Name: h.SegmentName}
	}
	if h.ReadOnly {
		return &rollerrors.IllegalStateError{Name: h.SegmentName, Reason: "truncate requires a writable handle"}
	}
	if h.Sealed {
		return &rollerrors.SealedError{Name: h.SegmentName}
	}
	if !h.HasHeader {
		return nil
	}
	if truncationOffset < 0 || truncationOffset > h.Length() {
		return &rollerrors.BadOffsetError{Name: h.SegmentName, Offset: truncationOffset, Expected: h.Length()}
	}

	if truncationOffset >= h.Length() {
		if err := s.rollover(h); err != nil {
			return err
		}
	}

	var kept []SubSegment
	for _, seg := range h.SubSegments {
		if seg.LastOffset() <= truncationOffset && seg.Length > 0 {
			if seg.Exists {
				wh, err := s.sub.OpenWrite(seg.Name)
				if err != nil {
					if !rollerrors.IsNotExists(err) {
						return rollerrors.WrapIo(h.SegmentName, err)
					}
				} else {
					if err := s.sub.Delete(wh); err != nil && !rollerrors.IsNotExists(err) {
						s.sub.Close(wh)
						return rollerrors.WrapIo(h.SegmentName, err)
					}
					s.sub.Close(wh)
				}
			}
			continue
		}
		kept = append(kept, seg)
	}
	h.SubSegments = kept
	return nil
}

// Exists reports whether a segment with the given logical name is
// present, without opening it.
func (s *RollingStore) Exists(name string) (bool, error) {
	hExists, err := s.sub.Exists(headerName(name))
	if err != nil {
		return false, rollerrors.WrapIo(name, err)
	}
	if hExists {
		st, err := s.sub.Stat(headerName(name))
		if err != nil {
			return false, rollerrors.WrapIo(name, err)
		}
		if st.Length > 0 {
			return true, nil
		}
	}
	return s.sub.Exists(name)
}

// Info returns the name, sealed state, and logical length of name
// without requiring a full handle.
func (s *RollingStore) Info(name string) (SegmentInfo, error) {
	h, err := s.OpenRead(name)
	if err != nil {
		return SegmentInfo{}, err
	}
	return SegmentInfo{Name: h.SegmentName, Sealed: h.Sealed, Length: h.Length()}, nil
}
