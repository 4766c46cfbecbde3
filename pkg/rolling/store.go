// Package rolling implements the size-bounded segmentation engine:
// RollingStore operates over a substrate.Substrate to expose a single
// logical append-only segment backed by an ordered chain of
// fixed-size sub-segments described by a durable header.
package rolling

import (
	"sort"

	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
	"github.com/bobboyms/rollstore/pkg/substrate"
)

// RollingStore performs the operations of §4.3 over a Substrate. All
// operations are synchronous and execute on the caller's goroutine;
// RollingStore holds no lock of its own (§5) beyond what the
// underlying substrate provides.
type RollingStore struct {
	sub substrate.Substrate
}

// New returns a RollingStore backed by sub.
func New(sub substrate.Substrate) *RollingStore {
	return &RollingStore{sub: sub}
}

// SupportsTruncation always returns true: RollingStore implements
// precise truncation (§4.3 truncate).
func (s *RollingStore) SupportsTruncation() bool { return true }

// Create makes a fresh, empty logical segment under policy.
func (s *RollingStore) Create(name string, policy RollingPolicy) (*RollingHandle, error) {
	hName := headerName(name)

	hExists, err := s.sub.Exists(hName)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}
	if hExists {
		st, err := s.sub.Stat(hName)
		if err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
		if st.Length > 0 || st.Sealed {
			return nil, &rollerrors.AlreadyExistsError{Name: name}
		}
		// Empty, unsealed header blob: a crash remnant from a
		// previous create that never got past writing the prefix.
		// Proceed and overwrite it.
	} else {
		mExists, err := s.sub.Exists(name)
		if err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
		if mExists {
			st, err := s.sub.Stat(name)
			if err != nil {
				return nil, rollerrors.WrapIo(name, err)
			}
			if st.Length > 0 || st.Sealed {
				return nil, &rollerrors.AlreadyExistsError{Name: name}
			}
		}
		if err := s.sub.Create(hName); err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
	}

	headerBytes := SerializeEmptyHeader(policy)
	wh, err := s.sub.OpenWrite(hName)
	if err != nil {
		return nil, s.cleanupFailedCreate(hName, err)
	}
	if _, err := s.sub.Write(wh, 0, headerBytes); err != nil {
		s.sub.Close(wh)
		return nil, s.cleanupFailedCreate(hName, err)
	}

	return &RollingHandle{
		SegmentName:       name,
		HasHeader:         true,
		HeaderName:        hName,
		Policy:            policy,
		HeaderLength:      int64(len(headerBytes)),
		HeaderWriteHandle: wh,
	}, nil
}

func (s *RollingStore) cleanupFailedCreate(hName string, cause error) error {
	if wh, err := s.sub.OpenWrite(hName); err == nil {
		_ = s.sub.Delete(wh)
		s.sub.Close(wh)
	}
	return rollerrors.WrapIo(hName, cause)
}

// OpenRead opens name for reading.
func (s *RollingStore) OpenRead(name string) (*RollingHandle, error) {
	return s.open(name, false)
}

// OpenWrite opens name for reading and writing.
func (s *RollingStore) OpenWrite(name string) (*RollingHandle, error) {
	return s.open(name, true)
}

func (s *RollingStore) open(name string, writable bool) (*RollingHandle, error) {
	hName := headerName(name)

	hExists, err := s.sub.Exists(hName)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}
	if hExists {
		st, err := s.sub.Stat(hName)
		if err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
		if st.Length > 0 {
			return s.openHeaderBacked(name, hName, st, writable)
		}
		// Empty header blob: crash remnant from create, treat as if
		// no header exists yet and fall through to the legacy check.
	}

	return s.openLegacy(name, writable)
}

func (s *RollingStore) openHeaderBacked(name, hName string, st substrate.Stat, writable bool) (*RollingHandle, error) {
	rh, err := s.sub.OpenRead(hName)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}
	buf := make([]byte, st.Length)
	if _, err := s.sub.Read(rh, 0, buf); err != nil {
		s.sub.Close(rh)
		return nil, rollerrors.WrapIo(name, err)
	}
	s.sub.Close(rh)

	policy, entries, entryCount, err := parseHeaderCountingEntries(buf)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}

	handle := &RollingHandle{
		SegmentName:      name,
		HasHeader:        true,
		HeaderName:       hName,
		Policy:           policy,
		SubSegments:      entries,
		HeaderEntryCount: entryCount,
		HeaderLength:     st.Length,
		Sealed:           st.Sealed,
		ReadOnly:         !writable,
	}

	if err := s.fixupLengths(handle); err != nil {
		return nil, err
	}

	if writable && !handle.Sealed {
		if tail := handle.tail(); tail != nil {
			wh, err := s.sub.OpenWrite(tail.Name)
			if err != nil {
				return nil, rollerrors.WrapIo(name, err)
			}
			handle.ActiveWriter = wh
		}
		hwh, err := s.sub.OpenWrite(hName)
		if err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
		handle.HeaderWriteHandle = hwh
	}

	return handle, nil
}

func (s *RollingStore) openLegacy(name string, writable bool) (*RollingHandle, error) {
	mExists, err := s.sub.Exists(name)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}
	if !mExists {
		return nil, &rollerrors.NotExistsError{Name: name}
	}
	st, err := s.sub.Stat(name)
	if err != nil {
		return nil, rollerrors.WrapIo(name, err)
	}

	handle := &RollingHandle{
		SegmentName: name,
		HasHeader:   false,
		Policy:      Unbounded,
		SubSegments: []SubSegment{{Name: name, StartOffset: 0, Length: st.Length, Sealed: st.Sealed, Exists: true}},
		Sealed:      st.Sealed,
		ReadOnly:    !writable,
	}

	if writable && !st.Sealed {
		wh, err := s.sub.OpenWrite(name)
		if err != nil {
			return nil, rollerrors.WrapIo(name, err)
		}
		handle.ActiveWriter = wh
	}
	return handle, nil
}

// fixupLengths stats the tail to learn its true length/sealed state
// (write() never updates the header for length changes) and derives
// every non-tail entry's length from the next entry's start offset.
func (s *RollingStore) fixupLengths(h *RollingHandle) error {
	n := len(h.SubSegments)
	if n == 0 {
		return nil
	}
	for i := 0; i < n-1; i++ {
		h.SubSegments[i].Length = h.SubSegments[i+1].StartOffset - h.SubSegments[i].StartOffset
		h.SubSegments[i].Sealed = true
	}
	tail := &h.SubSegments[n-1]
	st, err := s.sub.Stat(tail.Name)
	if err != nil {
		if rollerrors.IsNotExists(err) {
			tail.Exists = false
			return nil
		}
		return rollerrors.WrapIo(h.SegmentName, err)
	}
	tail.Length = st.Length
	tail.Sealed = st.Sealed
	return nil
}

// bisect returns the index of the sub-segment containing off, or the
// index of the tail if off equals the segment's current length
// (read-at-end boundary), or len(segs) if off is out of range.
func bisect(segs []SubSegment, off int64) int {
	idx := sort.Search(len(segs), func(i int) bool { return segs[i].LastOffset() > off })
	if idx == len(segs) && len(segs) > 0 && off == segs[len(segs)-1].LastOffset() {
		return len(segs) - 1
	}
	return idx
}

// parseHeaderCountingEntries is ParseHeader plus the top-level entry
// count (needed so this handle can later serve as a concat source).
func parseHeaderCountingEntries(data []byte) (RollingPolicy, []SubSegment, int, error) {
	policy, entries, err := ParseHeader(data)
	if err != nil {
		return RollingPolicy{}, nil, 0, err
	}
	count, err := countTopLevelEntries(data)
	if err != nil {
		return RollingPolicy{}, nil, 0, err
	}
	return policy, entries, count, nil
}
