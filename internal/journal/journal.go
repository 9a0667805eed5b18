// Package journal implements the append-only, line-oriented durable logs
// behind the mention store and the pending queue: one JSON object per
// line, appended and never rewritten. A crash can leave at most one
// partial trailing line, which is truncated away on the next open and
// skipped by readers, so all fully written records stay valid.
package journal

import (
	"bytes"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// openForAppend opens path for appending, first truncating any partial
// trailing line left by a crash. Returns the file positioned at its end
// and the durable size in bytes.
func openForAppend(path string) (*os.File, int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "journal: open %s", path)
	}

	size, err := completeSize(f)
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	info, statErr := f.Stat()
	if statErr != nil {
		f.Close()
		return nil, 0, eris.Wrapf(statErr, "journal: stat %s", path)
	}
	if size < info.Size() {
		zap.L().Warn("journal: discarding partial trailing record",
			zap.String("path", path),
			zap.Int64("truncated_bytes", info.Size()-size),
		)
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, 0, eris.Wrapf(err, "journal: truncate %s", path)
		}
	}

	if _, err := f.Seek(size, io.SeekStart); err != nil {
		f.Close()
		return nil, 0, eris.Wrapf(err, "journal: seek %s", path)
	}
	return f, size, nil
}

// completeSize returns the byte length of the longest prefix of f ending
// in a newline. A record counts as durable only once its newline is on
// disk.
func completeSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, eris.Wrap(err, "journal: stat")
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	// Walk back from the end looking for the last newline. The partial
	// tail is at most one record, so a small window almost always
	// suffices.
	const window = 64 * 1024
	buf := make([]byte, window)
	pos := size
	for pos > 0 {
		n := int64(len(buf))
		if n > pos {
			n = pos
		}
		if _, err := f.ReadAt(buf[:n], pos-n); err != nil {
			return 0, eris.Wrap(err, "journal: scan tail")
		}
		if idx := bytes.LastIndexByte(buf[:n], '\n'); idx >= 0 {
			return pos - n + int64(idx) + 1, nil
		}
		pos -= n
	}
	return 0, nil
}

// appendLine writes one record line and syncs it to disk.
func appendLine(f *os.File, line []byte) (int64, error) {
	n, err := f.Write(line)
	if err != nil {
		return int64(n), eris.Wrap(err, "journal: write record")
	}
	if err := f.Sync(); err != nil {
		return int64(n), eris.Wrap(err, "journal: sync")
	}
	return int64(n), nil
}
