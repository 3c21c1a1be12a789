package ports

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"forensiq/pkg/errors"
)

// LocalBlobStore is a local-disk BlobStore, grounded on the teacher's
// LocalFileSink file-handle lifecycle (internal/sinks/local_file_sink.go):
// one base directory, one sub-directory per upload id, files opened and
// closed per call rather than held for the process lifetime, since
// analysis artifacts are read once at parse time rather than streamed
// continuously like log shipping output.
type LocalBlobStore struct {
	baseDir string
}

// NewLocalBlobStore roots a BlobStore at baseDir; baseDir must already exist.
func NewLocalBlobStore(baseDir string) *LocalBlobStore {
	return &LocalBlobStore{baseDir: baseDir}
}

func (b *LocalBlobStore) uploadDir(uploadID string) string {
	return filepath.Join(b.baseDir, filepath.Base(uploadID))
}

// List returns the file names under an upload id.
func (b *LocalBlobStore) List(_ context.Context, uploadID string) ([]string, error) {
	entries, err := os.ReadDir(b.uploadDir(uploadID))
	if err != nil {
		return nil, errors.Dependency("list", "blob store: "+err.Error())
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Open opens a file for reading as UTF-8 text (spec §6: non-text
// artifacts are out of scope, so no encoding detection happens here). A
// ".gz" suffix is decompressed transparently — shipped log archives are
// routinely gzipped, and the Rule Engine and IOC Extractor should see
// plain text regardless of how the blob arrived on disk.
func (b *LocalBlobStore) Open(_ context.Context, uploadID, fileName string) (io.ReadCloser, error) {
	path := filepath.Join(b.uploadDir(uploadID), filepath.Base(fileName))
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Dependency("open", "blob store: "+err.Error())
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Dependency("open", "blob store: gzip: "+err.Error())
	}
	return &gzipReadCloser{gz: gz, f: f}, nil
}

// gzipReadCloser closes both the gzip stream and the underlying file
// handle, in that order, so a partially-read archive still releases its
// file descriptor.
type gzipReadCloser struct {
	gz *gzip.Reader
	f  *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) { return g.gz.Read(p) }

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fErr := g.f.Close()
	if gzErr != nil {
		return gzErr
	}
	return fErr
}
