package rolling

import (
	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
)

// Read reads len(buf) bytes starting at offset into buf, returning the
// number of bytes read.
func (s *RollingStore) Read(h *RollingHandle, offset int64, buf []byte) (int, error) {
	if h.Deleted {
		return 0, &rollerrors.NotExistsError{Name: h.SegmentName}
	}
	if len(buf) == 0 && offset == h.Length() {
		return 0, nil
	}
	if offset < 0 || offset > h.Length() {
		return 0, &rollerrors.BadOffsetError{Name: h.SegmentName, Offset: offset, Expected: h.Length()}
	}

	end := offset + int64(len(buf))
	if end > h.Length() {
		if h.ReadOnly && !h.Sealed {
			if err := s.refresh(h); err != nil {
				return 0, err
			}
		}
		if end > h.Length() {
			return 0, &rollerrors.BadOffsetError{Name: h.SegmentName, Offset: end, Expected: h.Length()}
		}
	}
	if len(buf) == 0 {
		return 0, nil
	}

	idx := bisect(h.SubSegments, offset)
	pos := offset
	read := 0

	for read < len(buf) {
		if idx >= len(h.SubSegments) {
			return read, &rollerrors.TruncatedError{Name: h.SegmentName}
		}
		seg := &h.SubSegments[idx]

		if seg.Length == 0 {
			// Empty non-tail sub-segment: should have been removed by
			// truncation. Skip it rather than looping on it (§9 Open
			// Questions).
			idx++
			continue
		}
		if !seg.Exists {
			return read, s.translateMissingBlob(h)
		}

		localOff := pos - seg.StartOffset
		avail := seg.Length - localOff
		want := int64(len(buf) - read)
		if want > avail {
			want = avail
		}

		rh, err := s.sub.OpenRead(seg.Name)
		if err != nil {
			if rollerrors.IsNotExists(err) {
				seg.Exists = false
				return read, s.translateMissingBlob(h)
			}
			return read, rollerrors.WrapIo(h.SegmentName, err)
		}
		n, err := s.sub.Read(rh, localOff, buf[read:read+int(want)])
		s.sub.Close(rh)
		if err != nil {
			if rollerrors.IsNotExists(err) {
				seg.Exists = false
				return read, s.translateMissingBlob(h)
			}
			return read, rollerrors.WrapIo(h.SegmentName, err)
		}

		read += n
		pos += int64(n)
		if int64(n) < want {
			// Short read from a substrate blob shorter than the
			// header's derived length: treat as truncated.
			return read, s.translateMissingBlob(h)
		}
		idx++
	}
	return read, nil
}

// translateMissingBlob implements the refresh-then-classify step of
// §4.4: refresh the handle, then surface NotExists if the segment has
// since been deleted, or Truncated otherwise.
func (s *RollingStore) translateMissingBlob(h *RollingHandle) error {
	if err := s.refresh(h); err != nil {
		if rollerrors.IsNotExists(err) {
			h.Deleted = true
			return err
		}
		return err
	}
	if h.Deleted {
		return &rollerrors.NotExistsError{Name: h.SegmentName}
	}
	return &rollerrors.TruncatedError{Name: h.SegmentName}
}

// refresh re-opens the segment by name and patches h's sub-segment
// list, header bookkeeping, and sealed flag in place (§4.4). It never
// touches h.ActiveWriter/HeaderWriteHandle: refresh is only meaningful
// for read-only handles.
func (s *RollingStore) refresh(h *RollingHandle) error {
	fresh, err := s.open(h.SegmentName, false)
	if err != nil {
		if rollerrors.IsNotExists(err) {
			h.Deleted = true
		}
		return err
	}
	h.SubSegments = fresh.SubSegments
	h.HeaderEntryCount = fresh.HeaderEntryCount
	h.HeaderLength = fresh.HeaderLength
	h.Sealed = fresh.Sealed
	h.HasHeader = fresh.HasHeader
	h.HeaderName = fresh.HeaderName
	return nil
}

// Write appends data at offset, which must equal the handle's current
// length (strict append only).
func (s *RollingStore) Write(h *RollingHandle, offset int64, data []byte) (int, error) {
	if h.Deleted {
		return 0, &rollerrors.NotExistsError{Name: h.SegmentName}
	}
	if h.ReadOnly {
		return 0, &rollerrors.IllegalStateError{Name: h.SegmentName, Reason: "handle is read-only"}
	}
	if h.Sealed {
		return 0, &rollerrors.SealedError{Name: h.SegmentName}
	}
	if len(data) == 0 {
		return 0, nil
	}
	if offset != h.Length() {
		return 0, &rollerrors.BadOffsetError{Name: h.SegmentName, Offset: offset, Expected: h.Length()}
	}

	remaining := data
	written := 0
	for len(remaining) > 0 {
		tail := h.tail()
		if tail == nil || tail.Sealed || tail.Length >= h.Policy.EffectiveMax() {
			if err := s.rollover(h); err != nil {
				return written, err
			}
			tail = h.tail()
		}

		capacity := h.Policy.EffectiveMax() - tail.Length
		n := int64(len(remaining))
		if n > capacity {
			n = capacity
		}

		if _, err := s.sub.Write(h.ActiveWriter, tail.Length, remaining[:n]); err != nil {
			return written, rollerrors.WrapIo(h.SegmentName, err)
		}
		tail.Length += n
		remaining = remaining[n:]
		written += int(n)
	}
	return written, nil
}

// rollover seals the current tail (if any) and starts a new one.
func (s *RollingStore) rollover(h *RollingHandle) error {
	if tail := h.tail(); tail != nil && h.ActiveWriter != nil {
		if err := s.sub.Seal(h.ActiveWriter); err != nil {
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		tail.Sealed = true
		s.sub.Close(h.ActiveWriter)
		h.ActiveWriter = nil
	}

	newStart := h.Length()
	newName := subName(h.SegmentName, newStart)

	existingLen := int64(0)
	exists, err := s.sub.Exists(newName)
	if err != nil {
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	if exists {
		st, err := s.sub.Stat(newName)
		if err != nil {
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		if st.Sealed {
			return rollerrors.WrapIo(h.SegmentName, &rollerrors.IllegalStateError{
				Name: newName, Reason: "crash remnant sub-segment is unexpectedly sealed",
			})
		}
		existingLen = st.Length
	} else if err := s.sub.Create(newName); err != nil {
		return rollerrors.WrapIo(h.SegmentName, err)
	}

	if h.HasHeader {
		entryBytes := SerializeNewSubSegmentEntry(newStart, newName)
		if _, err := s.sub.Write(h.HeaderWriteHandle, h.HeaderLength, entryBytes); err != nil {
			if isBadOffset(err) {
				return &rollerrors.NotPrimaryError{Name: h.SegmentName}
			}
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		h.HeaderLength += int64(len(entryBytes))
		h.HeaderEntryCount++
	}

	h.SubSegments = append(h.SubSegments, SubSegment{
		Name: newName, StartOffset: newStart, Length: existingLen, Sealed: false, Exists: true,
	})

	wh, err := s.sub.OpenWrite(newName)
	if err != nil {
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	h.ActiveWriter = wh
	return nil
}

func isBadOffset(err error) bool {
	return rollerrors.IsBadOffset(err)
}
