package rolling

import rollerrors "github.com/bobboyms/rollstore/pkg/errors"

// Seal seals the active tail (if any) and the header blob (if any),
// and marks h sealed. Idempotent.
func (s *RollingStore) Seal(h *RollingHandle) error {
	if h.Deleted {
		return &rollerrors.NotExistsError{Name: h.SegmentName}
	}
	if h.Sealed {
		return nil
	}
	if h.ReadOnly {
		return &rollerrors.IllegalStateError{Name: h.SegmentName, Reason: "seal requires a writable handle"}
	}

	if h.ActiveWriter != nil {
		if err := s.sub.Seal(h.ActiveWriter); err != nil {
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		if tail := h.tail(); tail != nil {
			tail.Sealed = true
		}
		s.sub.Close(h.ActiveWriter)
		h.ActiveWriter = nil
	}

	if h.HasHeader && h.HeaderWriteHandle != nil {
		if err := s.sub.Seal(h.HeaderWriteHandle); err != nil {
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		s.sub.Close(h.HeaderWriteHandle)
		h.HeaderWriteHandle = nil
	}

	h.Sealed = true
	return nil
}

// Delete removes every backing blob and marks h deleted, even on
// partial failure, so the handle (and any other handle to the same
// name) cannot accidentally be used afterward.
func (s *RollingStore) Delete(h *RollingHandle) error {
	defer func() { h.Deleted = true }()

	if h.Deleted {
		return &rollerrors.NotExistsError{Name: h.SegmentName}
	}

	if !h.HasHeader {
		wh, err := s.sub.OpenWrite(h.SegmentName)
		if err != nil {
			if rollerrors.IsNotExists(err) {
				return nil
			}
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		defer s.sub.Close(wh)
		if err := s.sub.Delete(wh); err != nil && !rollerrors.IsNotExists(err) {
			return rollerrors.WrapIo(h.SegmentName, err)
		}
		return nil
	}

	if !h.Sealed {
		if h.ReadOnly {
			writable, err := s.OpenWrite(h.SegmentName)
			if err != nil && !rollerrors.IsNotExists(err) {
				return err
			}
			if err == nil {
				if err := s.Seal(writable); err != nil {
					return err
				}
				h.SubSegments = writable.SubSegments
				h.HeaderLength = writable.HeaderLength
				h.Sealed = writable.Sealed
			}
		} else if err := s.Seal(h); err != nil {
			return err
		}
	}

	var firstErr error
	for i := range h.SubSegments {
		seg := &h.SubSegments[i]
		if !seg.Exists {
			continue
		}
		wh, err := s.sub.OpenWrite(seg.Name)
		if err != nil {
			if rollerrors.IsNotExists(err) {
				seg.Exists = false
				continue
			}
			if firstErr == nil {
				firstErr = rollerrors.WrapIo(h.SegmentName, err)
			}
			continue
		}
		if err := s.sub.Delete(wh); err != nil && !rollerrors.IsNotExists(err) {
			if firstErr == nil {
				firstErr = rollerrors.WrapIo(h.SegmentName, err)
			}
		}
		s.sub.Close(wh)
		seg.Exists = false
	}

	hwh, err := s.sub.OpenWrite(h.HeaderName)
	if err != nil {
		if !rollerrors.IsNotExists(err) && firstErr == nil {
			firstErr = rollerrors.WrapIo(h.SegmentName, err)
		}
	} else {
		if err := s.sub.Delete(hwh); err != nil && !rollerrors.IsNotExists(err) && firstErr == nil {
			firstErr = rollerrors.WrapIo(h.SegmentName, err)
		}
		s.sub.Close(hwh)
	}

	return firstErr
}
