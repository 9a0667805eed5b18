package journal

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/model"
)

// PendingLog is the buffered, append-only export queue feeding Phase 2.
// Items accumulate in memory and reach disk only through Flush, which the
// Phase 1 runner calls in lock-step with every checkpoint save: flush
// first, then the checkpoint records the returned offset. A crash between
// the two leaves orphan bytes past the last checkpointed offset; the next
// OpenPending truncates them, and the entities re-export naturally when
// re-encountered, so no item is ever enqueued twice.
type PendingLog struct {
	path   string
	f      *os.File
	offset int64
	buf    []model.PendingItem
}

// OpenPending opens the pending queue for appending, truncating the file
// to checkpointOffset (the durable length recorded by the last
// checkpoint). Pass 0 on a fresh start.
func OpenPending(path string, checkpointOffset int64) (*PendingLog, error) {
	f, size, err := openForAppend(path)
	if err != nil {
		return nil, err
	}
	if checkpointOffset > size {
		f.Close()
		return nil, eris.Errorf("pending: checkpoint offset %d past end of %s (%d bytes)", checkpointOffset, path, size)
	}
	if checkpointOffset < size {
		zap.L().Info("pending: truncating un-checkpointed tail",
			zap.String("path", path),
			zap.Int64("orphan_bytes", size-checkpointOffset),
		)
		if err := f.Truncate(checkpointOffset); err != nil {
			f.Close()
			return nil, eris.Wrapf(err, "pending: truncate %s", path)
		}
		if _, err := f.Seek(checkpointOffset, 0); err != nil {
			f.Close()
			return nil, eris.Wrapf(err, "pending: seek %s", path)
		}
	}
	return &PendingLog{path: path, f: f, offset: checkpointOffset}, nil
}

// Enqueue buffers an item for the next flush.
func (l *PendingLog) Enqueue(item model.PendingItem) {
	l.buf = append(l.buf, item)
}

// Buffered returns the number of items awaiting flush.
func (l *PendingLog) Buffered() int {
	return len(l.buf)
}

// UpdateBuffered applies fn to every buffered item. Phase 1 uses it to
// refresh aggregated mention counts just before a flush, so an item
// carries every mention seen up to the checkpoint it ships with.
func (l *PendingLog) UpdateBuffered(fn func(item *model.PendingItem)) {
	for i := range l.buf {
		fn(&l.buf[i])
	}
}

// Flush appends all buffered items and returns the durable byte offset of
// the queue after the write. The caller must record that offset in the
// checkpoint it saves immediately afterwards.
func (l *PendingLog) Flush() (int64, error) {
	for _, item := range l.buf {
		line, err := json.Marshal(item)
		if err != nil {
			return l.offset, eris.Wrap(err, "pending: marshal")
		}
		line = append(line, '\n')
		n, err := appendLine(l.f, line)
		if err != nil {
			return l.offset, eris.Wrap(err, "pending: flush")
		}
		l.offset += n
	}
	l.buf = l.buf[:0]
	return l.offset, nil
}

// Offset returns the current durable byte offset (excludes buffered items).
func (l *PendingLog) Offset() int64 {
	return l.offset
}

// Close flushes nothing and closes the file; unflushed items are
// intentionally dropped, matching the crash semantics.
func (l *PendingLog) Close() error {
	return l.f.Close()
}

// ScanPending streams pending items from the queue at path in append
// order, without loading the queue into memory. yield returning false
// stops the scan.
func ScanPending(path string, yield func(model.PendingItem) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "pending: open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var item model.PendingItem
		if err := json.Unmarshal(sc.Bytes(), &item); err != nil {
			zap.L().Warn("pending: skipping malformed record", zap.Error(err))
			continue
		}
		if !yield(item) {
			return nil
		}
	}
	return eris.Wrap(sc.Err(), "pending: scan")
}
