// Package fetcher downloads corpus sources listed in a manifest into the
// local corpus directory: plain text files over HTTP or FTP, and ZIP
// archives expanded in place.
package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Downloader retrieves a remote resource as a stream.
type Downloader interface {
	// Download fetches the URL and returns the body. The caller must
	// close the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to path. Returns
	// bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns the downloader matching the URL's scheme.
func ForURL(rawURL string, httpF *HTTPFetcher, ftpF *FTPFetcher) (Downloader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return httpF, nil
	case "ftp":
		return ftpF, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}
