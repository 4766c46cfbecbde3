package substrate

import "time"

// SyncPolicy controls when FileSubstrate fsyncs a blob's write handle,
// mirroring the teacher's wal.SyncPolicy knob.
type SyncPolicy int

const (
	// SyncEveryWrite fsyncs after every Write call. Safest, slowest.
	SyncEveryWrite SyncPolicy = iota

	// SyncOnSeal defers fsync until the blob is sealed (or used as a
	// Concat target); Close flushes buffered bytes without an fsync.
	// Crash-recovery of the in-progress tail is still correct because
	// the rolling layer derives tail length from Stat, not the header.
	SyncOnSeal

	// SyncBatch fsyncs once SyncBatchBytes have been written since
	// the last sync.
	SyncBatch
)

// Options configures a FileSubstrate.
type Options struct {
	// DirPath is the directory all blobs are created under.
	DirPath string

	// BufferSize is the bufio.Writer buffer size used per write handle.
	BufferSize int

	// Policy controls fsync frequency.
	Policy SyncPolicy

	// SyncBatchBytes is the accumulated-bytes threshold for SyncBatch.
	SyncBatchBytes int64

	// SyncInterval is not read by FileSubstrate under any policy; it is
	// kept for parity with the teacher's WAL options.
	SyncInterval time.Duration
}

// DefaultOptions returns a safe default configuration.
func DefaultOptions(dirPath string) Options {
	return Options{
		DirPath:        dirPath,
		BufferSize:     64 * 1024,
		Policy:         SyncOnSeal,
		SyncBatchBytes: 1 * 1024 * 1024,
		SyncInterval:   200 * time.Millisecond,
	}
}
