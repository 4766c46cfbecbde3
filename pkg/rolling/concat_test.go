package rolling

import (
	"testing"

	"github.com/bobboyms/rollstore/pkg/substrate"
)

func TestConcat_NativePathSplicesIntoTail(t *testing.T) {
	s := New(substrate.NewMemory())
	target, _ := s.Create("target", RollingPolicy{MaxSubSegmentLength: 100})
	s.Write(target, 0, []byte("abc"))

	source, _ := s.Create("source", RollingPolicy{MaxSubSegmentLength: 100})
	s.Write(source, 0, []byte("def"))
	s.Seal(source)

	if err := s.Concat(target, target.Length(), "source"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if target.Length() != 6 {
		t.Fatalf("want length 6, got %d", target.Length())
	}
	buf := make([]byte, 6)
	if _, err := s.Read(target, 0, buf); err != nil || string(buf) != "abcdef" {
		t.Fatalf("Read: %q %v", buf, err)
	}
}

func TestConcat_HeaderMergeWhenCapacityExceeded(t *testing.T) {
	s := New(substrate.NewMemory())
	target, _ := s.Create("target", RollingPolicy{MaxSubSegmentLength: 4})
	s.Write(target, 0, []byte("abcd")) // tail is exactly full; merge concat seals it

	source, _ := s.Create("source", RollingPolicy{MaxSubSegmentLength: 4})
	s.Write(source, 0, []byte("ef"))
	s.Seal(source)

	if err := s.Concat(target, target.Length(), "source"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if target.Length() != 6 {
		t.Fatalf("want length 6, got %d", target.Length())
	}
	buf := make([]byte, 6)
	if _, err := s.Read(target, 0, buf); err != nil || string(buf) != "abcdef" {
		t.Fatalf("Read: %q %v", buf, err)
	}
	if !target.HasHeader {
		t.Fatalf("target should be header-backed after merge concat")
	}
}

func TestConcat_RejectsUnsealedSource(t *testing.T) {
	s := New(substrate.NewMemory())
	target, _ := s.Create("target", Unbounded)
	source, _ := s.Create("source", Unbounded)
	s.Write(source, 0, []byte("x"))

	if err := s.Concat(target, target.Length(), "source"); err == nil {
		t.Fatalf("want error concatenating an unsealed source")
	}
}

func TestConcat_EmptySourceIsDeletedAndNoop(t *testing.T) {
	s := New(substrate.NewMemory())
	target, _ := s.Create("target", Unbounded)
	s.Write(target, 0, []byte("abc"))
	source, _ := s.Create("source", Unbounded)
	s.Seal(source)

	if err := s.Concat(target, target.Length(), "source"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	if target.Length() != 3 {
		t.Fatalf("empty concat should not change target length, got %d", target.Length())
	}
	if _, err := s.OpenRead("source"); err == nil {
		t.Fatalf("empty source should have been deleted")
	}
}
