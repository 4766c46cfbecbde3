package substrate

import (
	"testing"

	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
)

func TestMemory_CreateExistsStat(t *testing.T) {
	m := NewMemory()
	if err := m.Create("a"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.Create("a"); !rollerrors.IsAlreadyExists(err) {
		t.Fatalf("want AlreadyExistsError, got %v", err)
	}
	ok, err := m.Exists("a")
	if err != nil || !ok {
		t.Fatalf("Exists: %v %v", ok, err)
	}
	st, err := m.Stat("a")
	if err != nil || st.Length != 0 || st.Sealed {
		t.Fatalf("Stat: %+v %v", st, err)
	}
}

func TestMemory_WriteRequiresCurrentOffset(t *testing.T) {
	m := NewMemory()
	m.Create("a")
	h, _ := m.OpenWrite("a")
	if _, err := m.Write(h, 5, []byte("x")); !rollerrors.IsBadOffset(err) {
		t.Fatalf("want BadOffsetError, got %v", err)
	}
	if _, err := m.Write(h, 0, []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	buf := make([]byte, 5)
	if _, err := m.Read(h, 0, buf); err != nil || string(buf) != "hello" {
		t.Fatalf("Read: %q %v", buf, err)
	}
}

func TestMemory_SealRejectsFurtherWrites(t *testing.T) {
	m := NewMemory()
	m.Create("a")
	h, _ := m.OpenWrite("a")
	m.Write(h, 0, []byte("x"))
	if err := m.Seal(h); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := m.Write(h, 1, []byte("y")); !rollerrors.IsSealed(err) {
		t.Fatalf("want SealedError, got %v", err)
	}
}

func TestMemory_ConcatAppendsAndDeletesSource(t *testing.T) {
	m := NewMemory()
	m.Create("target")
	m.Create("source")
	th, _ := m.OpenWrite("target")
	sh, _ := m.OpenWrite("source")
	m.Write(th, 0, []byte("abc"))
	m.Write(sh, 0, []byte("def"))
	m.Seal(sh)

	if err := m.Concat(th, 3, "source"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	st, _ := m.Stat("target")
	if st.Length != 6 {
		t.Fatalf("want length 6, got %d", st.Length)
	}
	if ok, _ := m.Exists("source"); ok {
		t.Fatalf("source should have been deleted")
	}
}

func TestMemory_DeleteIdempotencyAndNotExists(t *testing.T) {
	m := NewMemory()
	m.Create("a")
	h, _ := m.OpenWrite("a")
	if err := m.Delete(h); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := m.Stat("a"); !rollerrors.IsNotExists(err) {
		t.Fatalf("want NotExistsError, got %v", err)
	}
	if err := m.Delete(h); !rollerrors.IsNotExists(err) {
		t.Fatalf("second delete: want NotExistsError, got %v", err)
	}
}
