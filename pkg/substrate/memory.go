package substrate

import (
	"sync"

	rollerrors "github.com/bobboyms/rollstore/pkg/errors"
)

// Memory is an in-process Substrate implementation. It is the natural
// test fixture for the rolling layer (§9 Design Notes: "an in-memory
// substrate is the natural test fixture"), and is also handy for
// ephemeral, single-process use of RollingStore.
type Memory struct {
	mu    sync.Mutex
	blobs map[string]*memBlob
}

type memBlob struct {
	data   []byte
	sealed bool
}

// NewMemory returns an empty in-memory substrate.
func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]*memBlob)}
}

type memHandle struct {
	name string
	m    *Memory
}

func (h *memHandle) Name() string { return h.name }

func (m *Memory) Create(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; ok {
		return &rollerrors.AlreadyExistsError{Name: name}
	}
	m.blobs[name] = &memBlob{}
	return nil
}

func (m *Memory) OpenRead(name string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return nil, &rollerrors.NotExistsError{Name: name}
	}
	return &memHandle{name: name, m: m}, nil
}

func (m *Memory) OpenWrite(name string) (Handle, error) {
	return m.OpenRead(name)
}

func (m *Memory) Read(h Handle, offset int64, buf []byte) (int, error) {
	name := h.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return 0, &rollerrors.NotExistsError{Name: name}
	}
	if offset < 0 || offset > int64(len(b.data)) {
		return 0, &rollerrors.BadOffsetError{Name: name, Offset: offset, Expected: int64(len(b.data))}
	}
	n := copy(buf, b.data[offset:])
	return n, nil
}

func (m *Memory) Write(h Handle, offset int64, data []byte) (int, error) {
	name := h.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return 0, &rollerrors.NotExistsError{Name: name}
	}
	if b.sealed {
		return 0, &rollerrors.SealedError{Name: name}
	}
	if offset != int64(len(b.data)) {
		return 0, &rollerrors.BadOffsetError{Name: name, Offset: offset, Expected: int64(len(b.data))}
	}
	b.data = append(b.data, data...)
	return len(data), nil
}

func (m *Memory) Seal(h Handle) error {
	name := h.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return &rollerrors.NotExistsError{Name: name}
	}
	b.sealed = true
	return nil
}

func (m *Memory) Concat(target Handle, offset int64, sourceName string) error {
	name := target.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.blobs[name]
	if !ok {
		return &rollerrors.NotExistsError{Name: name}
	}
	if t.sealed {
		return &rollerrors.SealedError{Name: name}
	}
	if offset != int64(len(t.data)) {
		return &rollerrors.BadOffsetError{Name: name, Offset: offset, Expected: int64(len(t.data))}
	}
	src, ok := m.blobs[sourceName]
	if !ok {
		return &rollerrors.NotExistsError{Name: sourceName}
	}
	t.data = append(t.data, src.data...)
	delete(m.blobs, sourceName)
	return nil
}

func (m *Memory) Delete(h Handle) error {
	name := h.Name()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[name]; !ok {
		return &rollerrors.NotExistsError{Name: name}
	}
	delete(m.blobs, name)
	return nil
}

func (m *Memory) Exists(name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[name]
	return ok, nil
}

func (m *Memory) Stat(name string) (Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[name]
	if !ok {
		return Stat{}, &rollerrors.NotExistsError{Name: name}
	}
	return Stat{Name: name, Length: int64(len(b.data)), Sealed: b.sealed}, nil
}

func (m *Memory) Close(h Handle) error { return nil }
