package rolling

import (
	"bytes"
	"testing"

	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
	"github.com/bobboyms/rollstore/pkg/substrate"
)

func newTestStore() *RollingStore {
	return New(substrate.NewMemory())
}

func TestRollingStore_CreateRejectsDuplicate(t *testing.T) {
	s := newTestStore()
	if _, err := s.Create("seg", RollingPolicy{MaxSubSegmentLength: 8}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create("seg", RollingPolicy{MaxSubSegmentLength: 8}); !rollerrors.IsAlreadyExists(err) {
		t.Fatalf("want AlreadyExistsError, got %v", err)
	}
}

func TestRollingStore_WriteRollsOverAtPolicyBoundary(t *testing.T) {
	s := newTestStore()
	h, err := s.Create("seg", RollingPolicy{MaxSubSegmentLength: 4})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Write(h, 0, []byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if h.Length() != 10 {
		t.Fatalf("want length 10, got %d", h.Length())
	}
	if len(h.SubSegments) != 3 {
		t.Fatalf("want 3 sub-segments (4+4+2), got %d", len(h.SubSegments))
	}
	for i, seg := range h.SubSegments[:2] {
		if !seg.Sealed {
			t.Fatalf("non-tail sub-segment %d should be sealed", i)
		}
	}
	if h.SubSegments[2].Sealed {
		t.Fatalf("tail should not be sealed")
	}

	buf := make([]byte, 10)
	if _, err := s.Read(h, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "0123456789" {
		t.Fatalf("got %q", buf)
	}
}

func TestRollingStore_WriteRejectsNonAppendOffset(t *testing.T) {
	s := newTestStore()
	h, _ := s.Create("seg", Unbounded)
	s.Write(h, 0, []byte("abc"))
	if _, err := s.Write(h, 1, []byte("x")); !rollerrors.IsBadOffset(err) {
		t.Fatalf("want BadOffsetError, got %v", err)
	}
}

func TestRollingStore_ZeroByteWriteAndReadAtEndAreNoops(t *testing.T) {
	s := newTestStore()
	h, _ := s.Create("seg", Unbounded)
	s.Write(h, 0, []byte("abc"))
	if n, err := s.Write(h, 3, nil); n != 0 || err != nil {
		t.Fatalf("zero write: %d %v", n, err)
	}
	if n, err := s.Read(h, 3, nil); n != 0 || err != nil {
		t.Fatalf("zero read: %d %v", n, err)
	}
}

func TestRollingStore_SealPreventsFurtherWrites(t *testing.T) {
	s := newTestStore()
	h, _ := s.Create("seg", Unbounded)
	s.Write(h, 0, []byte("abc"))
	if err := s.Seal(h); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !h.Sealed {
		t.Fatalf("handle should report sealed")
	}
	if _, err := s.Write(h, 3, []byte("x")); !rollerrors.IsSealed(err) {
		t.Fatalf("want SealedError, got %v", err)
	}
	// Idempotent.
	if err := s.Seal(h); err != nil {
		t.Fatalf("second Seal should be a no-op: %v", err)
	}
}

func TestRollingStore_DeleteThenReopenFails(t *testing.T) {
	s := newTestStore()
	h, _ := s.Create("seg", Unbounded)
	s.Write(h, 0, []byte("abc"))
	if err := s.Delete(h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.OpenRead("seg"); !rollerrors.IsNotExists(err) {
		t.Fatalf("want NotExistsError, got %v", err)
	}
}

func TestRollingStore_RefreshPicksUpConcurrentWrites(t *testing.T) {
	s := newTestStore()
	writer, _ := s.Create("seg", RollingPolicy{MaxSubSegmentLength: 4})
	s.Write(writer, 0, []byte("0123"))

	reader, err := s.OpenRead("seg")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	if reader.Length() != 4 {
		t.Fatalf("want length 4, got %d", reader.Length())
	}

	s.Write(writer, 4, []byte("4567"))

	buf := make([]byte, 8)
	if _, err := s.Read(reader, 0, buf); err != nil {
		t.Fatalf("Read after refresh: %v", err)
	}
	if !bytes.Equal(buf, []byte("01234567")) {
		t.Fatalf("got %q", buf)
	}
}

func TestRollingStore_LegacySegmentRoundTrip(t *testing.T) {
	sub := substrate.NewMemory()
	s := New(sub)
	// Simulate a pre-existing blob with no header at all.
	sub.Create("legacy")
	wh, _ := sub.OpenWrite("legacy")
	sub.Write(wh, 0, []byte("legacy-data"))

	h, err := s.OpenRead("legacy")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	if h.HasHeader {
		t.Fatalf("legacy segment should report no header")
	}
	if h.Length() != int64(len("legacy-data")) {
		t.Fatalf("want length %d, got %d", len("legacy-data"), h.Length())
	}
}
