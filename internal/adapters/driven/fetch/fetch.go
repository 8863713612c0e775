// Package fetch implements driven.SourceReader for the two Source
// kinds: local filesystem paths and HTTP(S) URLs.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lumenforge/docindex/internal/core/domain"
	"github.com/lumenforge/docindex/internal/core/ports/driven"
)

var _ driven.SourceReader = (*Reader)(nil)

// maxRemoteSize caps remote downloads so a misbehaving server can't
// exhaust memory through one unbounded response body.
const maxRemoteSize = 256 << 20

// Reader reads source bytes from disk or over HTTP.
type Reader struct {
	client *http.Client
}

// New creates a Reader. client may be nil; a default with a 60s
// timeout is used then.
func New(client *http.Client) *Reader {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Reader{client: client}
}

// Read resolves source to its current bytes.
func (r *Reader) Read(ctx context.Context, source domain.Source) (driven.SourceContent, error) {
	switch source.Kind {
	case domain.SourceKindPath:
		return r.readFile(source.Value)
	case domain.SourceKindURL:
		return r.readURL(ctx, source.Value)
	default:
		return driven.SourceContent{}, fmt.Errorf("%w: unknown source kind %v", domain.ErrInvalidInput, source.Kind)
	}
}

func (r *Reader) readFile(path string) (driven.SourceContent, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return driven.SourceContent{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return driven.SourceContent{}, fmt.Errorf("fetch: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return driven.SourceContent{}, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return driven.SourceContent{}, fmt.Errorf("fetch: reading %s: %w", path, err)
	}

	return driven.SourceContent{
		Data:     data,
		MimeType: mimeFromPath(path, data),
		ModTime:  info.ModTime(),
	}, nil
}

func (r *Reader) readURL(ctx context.Context, url string) (driven.SourceContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return driven.SourceContent{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return driven.SourceContent{}, fmt.Errorf("%w: fetching %s: %v", domain.ErrUpstreamUnavailable, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return driven.SourceContent{}, fmt.Errorf("%w: %s", domain.ErrNotFound, url)
	}
	if resp.StatusCode >= 400 {
		return driven.SourceContent{}, fmt.Errorf("%w: %s returned %d", domain.ErrUpstreamUnavailable, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteSize+1))
	if err != nil {
		return driven.SourceContent{}, fmt.Errorf("%w: reading %s: %v", domain.ErrUpstreamUnavailable, url, err)
	}
	if len(data) > maxRemoteSize {
		return driven.SourceContent{}, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrInvalidInput, url, maxRemoteSize)
	}

	mime := resp.Header.Get("Content-Type")
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || mime == "application/octet-stream" {
		mime = mimeFromPath(url, data)
	}

	var modTime time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			modTime = t
		}
	}

	return driven.SourceContent{Data: data, MimeType: mime, ModTime: modTime}, nil
}

// mimeFromPath guesses a MIME type from the file extension, falling
// back to content sniffing for the formats the extractors care about.
func mimeFromPath(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSuffix(path, "/"))) {
	case ".pdf":
		return "application/pdf"
	case ".md", ".markdown":
		return "text/markdown"
	case ".html", ".htm":
		return "text/html"
	case ".txt":
		return "text/plain"
	}
	if len(data) >= 5 && string(data[:5]) == "%PDF-" {
		return "application/pdf"
	}
	return http.DetectContentType(data)
}
