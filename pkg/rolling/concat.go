package rolling

import rollerrors "github.com/bobboyms/rollstore/pkg/errors"

// Concat appends the sealed segment sourceName onto target at
// targetOffset (which must equal target.Length()), choosing between
// native concat (splice the source's single blob into target's tail)
// and header-merge concat (extend target's header with the source's
// rebased sub-segment table) per §4.3.
func (s *RollingStore) Concat(target *RollingHandle, targetOffset int64, sourceName string) error {
	if target.Deleted {
		return &rollerrors.NotExistsError{Name: target.SegmentName}
	}
	if target.ReadOnly {
		return &rollerrors.IllegalStateError{Name: target.SegmentName, Reason: "concat requires a writable handle"}
	}
	if target.Sealed {
		return &rollerrors.SealedError{Name: target.SegmentName}
	}
	if targetOffset != target.Length() {
		return &rollerrors.BadOffsetError{Name: target.SegmentName, Offset: targetOffset, Expected: target.Length()}
	}

	source, err := s.OpenWrite(sourceName)
	if err != nil {
		return err
	}
	if !source.Sealed {
		return &rollerrors.IllegalStateError{Name: sourceName, Reason: "concat source must be sealed"}
	}
	if source.Length() == 0 {
		return s.Delete(source)
	}

	for i := range source.SubSegments {
		seg := &source.SubSegments[i]
		st, err := s.sub.Stat(seg.Name)
		if err != nil {
			if rollerrors.IsNotExists(err) {
				return &rollerrors.IllegalStateError{Name: sourceName, Reason: "truncated source"}
			}
			return rollerrors.WrapIo(sourceName, err)
		}
		seg.Length = st.Length
		seg.Sealed = st.Sealed
	}

	if canNativeConcat(target, source) {
		return s.nativeConcat(target, source)
	}
	return s.headerMergeConcat(target, source)
}

func canNativeConcat(target, source *RollingHandle) bool {
	if len(source.SubSegments) != 1 || source.SubSegments[0].StartOffset != 0 {
		return false
	}
	tail := target.tail()
	if tail == nil {
		// Empty target: rollover creates a tail with the full budget.
		return source.Length() <= target.Policy.EffectiveMax()
	}
	// A sealed tail takes a fresh rollover before the splice, so it
	// always has the full policy budget available to it.
	remaining := target.Policy.EffectiveMax()
	if !tail.Sealed {
		remaining -= tail.Length
	}
	return source.Length() <= remaining
}

func (s *RollingStore) nativeConcat(target, source *RollingHandle) error {
	tail := target.tail()
	if tail == nil || tail.Sealed {
		if err := s.rollover(target); err != nil {
			return err
		}
		tail = target.tail()
	}

	srcBlobName := source.SubSegments[0].Name
	if err := s.sub.Concat(target.ActiveWriter, tail.Length, srcBlobName); err != nil {
		return rollerrors.WrapIo(target.SegmentName, err)
	}
	tail.Length += source.SubSegments[0].Length

	if source.HasHeader {
		if hwh, err := s.sub.OpenWrite(source.HeaderName); err == nil {
			_ = s.sub.Delete(hwh)
			s.sub.Close(hwh)
		}
	}
	return nil
}

func (s *RollingStore) headerMergeConcat(target, source *RollingHandle) error {
	if !target.HasHeader {
		if err := s.materializeHeader(target); err != nil {
			return err
		}
	}

	if tail := target.tail(); tail != nil && !tail.Sealed {
		if err := s.sub.Seal(target.ActiveWriter); err != nil {
			return rollerrors.WrapIo(target.SegmentName, err)
		}
		tail.Sealed = true
		s.sub.Close(target.ActiveWriter)
		target.ActiveWriter = nil
	}

	baseOffset := target.Length()
	nestedHeader, entryCount, err := s.sourceHeaderBytes(source)
	if err != nil {
		return err
	}

	concatBegin := SerializeConcatBeginEntry(uint32(entryCount), baseOffset)
	if _, err := s.sub.Write(target.HeaderWriteHandle, target.HeaderLength, concatBegin); err != nil {
		if isBadOffset(err) {
			return &rollerrors.NotPrimaryError{Name: target.SegmentName}
		}
		return rollerrors.WrapIo(target.SegmentName, err)
	}
	target.HeaderLength += int64(len(concatBegin))
	target.HeaderEntryCount++

	if source.HasHeader {
		if err := s.sub.Concat(target.HeaderWriteHandle, target.HeaderLength, source.HeaderName); err != nil {
			return rollerrors.WrapIo(target.SegmentName, err)
		}
	} else if _, err := s.sub.Write(target.HeaderWriteHandle, target.HeaderLength, nestedHeader); err != nil {
		return rollerrors.WrapIo(target.SegmentName, err)
	}
	target.HeaderLength += int64(len(nestedHeader))

	for _, seg := range source.SubSegments {
		target.SubSegments = append(target.SubSegments, seg.Rebase(seg.StartOffset+baseOffset))
	}
	return nil
}

// materializeHeader creates a header for a legacy target and
// backfills a NewSubSegment entry describing its pre-existing data,
// so the header's table stays consistent with what is already on
// disk (the original spec text is silent on this backfill; without it
// a legacy target's own bytes would have no header entry at all).
func (s *RollingStore) materializeHeader(h *RollingHandle) error {
	hName := headerName(h.SegmentName)
	if err := s.sub.Create(hName); err != nil {
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	data := SerializeEmptyHeader(h.Policy)
	if len(h.SubSegments) == 1 {
		data = append(data, SerializeNewSubSegmentEntry(0, h.SubSegments[0].Name)...)
	}
	wh, err := s.sub.OpenWrite(hName)
	if err != nil {
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	if _, err := s.sub.Write(wh, 0, data); err != nil {
		s.sub.Close(wh)
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	h.HasHeader = true
	h.HeaderName = hName
	h.HeaderLength = int64(len(data))
	h.HeaderEntryCount = len(h.SubSegments)
	h.HeaderWriteHandle = wh
	return nil
}

// sourceHeaderBytes returns the nested-header bytes to embed after a
// ConcatBegin entry, and how many top-level entries it contains. For
// a header-backed source this mirrors its own durable header; for a
// legacy source (no header blob at all) it synthesizes an equivalent
// single-entry header on the fly.
func (s *RollingStore) sourceHeaderBytes(source *RollingHandle) ([]byte, int, error) {
	if !source.HasHeader {
		data := SerializeEmptyHeader(source.Policy)
		data = append(data, SerializeNewSubSegmentEntry(0, source.SubSegments[0].Name)...)
		return data, 1, nil
	}
	rh, err := s.sub.OpenRead(source.HeaderName)
	if err != nil {
		return nil, 0, rollerrors.WrapIo(source.SegmentName, err)
	}
	defer s.sub.Close(rh)
	buf := make([]byte, source.HeaderLength)
	if _, err := s.sub.Read(rh, 0, buf); err != nil {
		return nil, 0, rollerrors.WrapIo(source.SegmentName, err)
	}
	return buf, source.HeaderEntryCount, nil
}
