package substrate

import (
	"os"
	"testing"

	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
)

func newTestFileSubstrate(t *testing.T) *FileSubstrate {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFileSubstrate(DefaultOptions(dir))
	if err != nil {
		t.Fatalf("NewFileSubstrate: %v", err)
	}
	return fs
}

func TestFileSubstrate_CreateWriteReadRoundTrip(t *testing.T) {
	fs := newTestFileSubstrate(t)
	if err := fs.Create("blob"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	wh, err := fs.OpenWrite("blob")
	if err != nil {
		t.Fatalf("OpenWrite: %v", err)
	}
	if _, err := fs.Write(wh, 0, []byte("hello world")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	fs.Close(wh)

	rh, err := fs.OpenRead("blob")
	if err != nil {
		t.Fatalf("OpenRead: %v", err)
	}
	defer fs.Close(rh)
	buf := make([]byte, 11)
	if _, err := fs.Read(rh, 0, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello world" {
		t.Fatalf("got %q", buf)
	}
}

func TestFileSubstrate_CreateConflict(t *testing.T) {
	fs := newTestFileSubstrate(t)
	fs.Create("blob")
	if err := fs.Create("blob"); !rollerrors.IsAlreadyExists(err) {
		t.Fatalf("want AlreadyExistsError, got %v", err)
	}
}

func TestFileSubstrate_SealMarksStat(t *testing.T) {
	fs := newTestFileSubstrate(t)
	fs.Create("blob")
	wh, _ := fs.OpenWrite("blob")
	fs.Write(wh, 0, []byte("x"))
	if err := fs.Seal(wh); err != nil {
		t.Fatalf("Seal: %v", err)
	}
	st, err := fs.Stat("blob")
	if err != nil || !st.Sealed {
		t.Fatalf("Stat: %+v %v", st, err)
	}
}

func TestFileSubstrate_ConcatAppendsAndRemovesSource(t *testing.T) {
	fs := newTestFileSubstrate(t)
	fs.Create("target")
	fs.Create("source")
	twh, _ := fs.OpenWrite("target")
	swh, _ := fs.OpenWrite("source")
	fs.Write(twh, 0, []byte("abc"))
	fs.Write(swh, 0, []byte("def"))
	fs.Seal(swh)

	if err := fs.Concat(twh, 3, "source"); err != nil {
		t.Fatalf("Concat: %v", err)
	}
	st, err := fs.Stat("target")
	if err != nil || st.Length != 6 {
		t.Fatalf("Stat: %+v %v", st, err)
	}
	if ok, _ := fs.Exists("source"); ok {
		t.Fatalf("source should have been removed")
	}
	if _, err := os.Stat(fs.sealPath("source")); !os.IsNotExist(err) {
		t.Fatalf("seal sidecar should have been removed too")
	}
}

func TestFileSubstrate_OpenReadNotExists(t *testing.T) {
	fs := newTestFileSubstrate(t)
	if _, err := fs.OpenRead("missing"); !rollerrors.IsNotExists(err) {
		t.Fatalf("want NotExistsError, got %v", err)
	}
}
