package fetcher

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SyncStats summarizes a manifest sync.
type SyncStats struct {
	Downloaded int
	Skipped    int
	Files      int
}

// Syncer materializes manifest sources into the corpus directory.
type Syncer struct {
	httpF *HTTPFetcher
	ftpF  *FTPFetcher
}

// NewSyncer wires a syncer over the two transports.
func NewSyncer(httpF *HTTPFetcher, ftpF *FTPFetcher) *Syncer {
	return &Syncer{httpF: httpF, ftpF: ftpF}
}

// Sync downloads every manifest source into corpusDir. Text sources land
// as <name>.txt; zip sources expand under <name>/. Sources whose target
// already exists are skipped, so a re-run only fills gaps. A failed
// source is logged and skipped; the remaining sources still sync.
func (s *Syncer) Sync(ctx context.Context, m *Manifest, corpusDir string) (SyncStats, error) {
	if err := os.MkdirAll(corpusDir, 0o755); err != nil {
		return SyncStats{}, eris.Wrapf(err, "sync: create corpus dir %s", corpusDir)
	}

	var stats SyncStats
	for _, src := range m.Sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		target := s.targetFor(src, corpusDir)
		if _, err := os.Stat(target); err == nil {
			zap.L().Debug("source already present", zap.String("source", src.Name))
			stats.Skipped++
			continue
		}

		n, err := s.syncSource(ctx, src, corpusDir, target)
		if err != nil {
			zap.L().Warn("source sync failed, skipping",
				zap.String("source", src.Name),
				zap.String("url", src.URL),
				zap.Error(err),
			)
			continue
		}
		stats.Downloaded++
		stats.Files += n
	}

	zap.L().Info("corpus sync complete",
		zap.Int("downloaded", stats.Downloaded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("files", stats.Files),
	)
	return stats, nil
}

func (s *Syncer) targetFor(src Source, corpusDir string) string {
	if src.Format == "zip" {
		return filepath.Join(corpusDir, src.Name)
	}
	return filepath.Join(corpusDir, src.Name+".txt")
}

// syncSource fetches one source and returns the number of corpus files it
// produced.
func (s *Syncer) syncSource(ctx context.Context, src Source, corpusDir, target string) (int, error) {
	dl, err := ForURL(src.URL, s.httpF, s.ftpF)
	if err != nil {
		return 0, err
	}

	if src.Format == "text" {
		if _, err := dl.DownloadToFile(ctx, src.URL, target); err != nil {
			return 0, err
		}
		return 1, nil
	}

	// Archive: download to a temp file, expand, then discard the archive.
	tmp, err := os.CreateTemp(corpusDir, ".archive-*")
	if err != nil {
		return 0, eris.Wrap(err, "sync: create temp archive")
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if _, err := dl.DownloadToFile(ctx, src.URL, tmpPath); err != nil {
		return 0, err
	}
	files, err := ExtractZIP(tmpPath, target)
	if err != nil {
		return len(files), eris.Wrapf(err, "sync: extract %s", src.Name)
	}
	return len(files), nil
}
