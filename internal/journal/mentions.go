package journal

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/archivist/internal/model"
)

// MentionLog is the durable, append-only record of every mention. It is
// deliberately decoupled from the registry's checkpointed summary so
// checkpoint size stays bounded regardless of corpus size.
type MentionLog struct {
	path string
	f    *os.File
}

// OpenMentions opens (or creates) the mention log at path for appending,
// discarding any partial trailing record from a previous crash.
func OpenMentions(path string) (*MentionLog, error) {
	f, _, err := openForAppend(path)
	if err != nil {
		return nil, err
	}
	return &MentionLog{path: path, f: f}, nil
}

// Append durably writes a single mention record. Prior records are never
// rewritten.
func (l *MentionLog) Append(m model.Mention) error {
	line, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "mentions: marshal")
	}
	line = append(line, '\n')
	if _, err := appendLine(l.f, line); err != nil {
		return eris.Wrap(err, "mentions: append")
	}
	return nil
}

// Close closes the underlying file.
func (l *MentionLog) Close() error {
	return l.f.Close()
}

// MentionsFor streams every mention recorded for a key, in append order.
// Each call re-reads the log from the start, so the sequence is
// restartable and never materializes the whole store. yield returning
// false stops the scan.
func (l *MentionLog) MentionsFor(key string, yield func(model.Mention) bool) error {
	return ScanMentions(l.path, func(m model.Mention) bool {
		if m.EntityKey != key {
			return true
		}
		return yield(m)
	})
}

// ScanMentions streams every mention in the log at path. Unparsable lines
// (a torn tail read concurrently with a writer) are skipped with a log
// entry rather than failing the scan.
func ScanMentions(path string, yield func(model.Mention) bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eris.Wrapf(err, "mentions: open %s", path)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var m model.Mention
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			zap.L().Warn("mentions: skipping malformed record", zap.Error(err))
			continue
		}
		if !yield(m) {
			return nil
		}
	}
	return eris.Wrap(sc.Err(), "mentions: scan")
}
