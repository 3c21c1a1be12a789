package ports

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBlobStoreListAndOpenPlainText(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	uploadDir := filepath.Join(base, "upload-1")
	require.NoError(t, os.Mkdir(uploadDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "auth.log"), []byte("hello world"), 0o644))

	store := NewLocalBlobStore(base)

	names, err := store.List(ctx, "upload-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"auth.log"}, names)

	rc, err := store.Open(ctx, "upload-1", "auth.log")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestLocalBlobStoreOpenDecompressesGzip(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	uploadDir := filepath.Join(base, "upload-2")
	require.NoError(t, os.Mkdir(uploadDir, 0o755))

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte("compressed auth log line"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, os.WriteFile(filepath.Join(uploadDir, "auth.log.gz"), buf.Bytes(), 0o644))

	store := NewLocalBlobStore(base)
	rc, err := store.Open(ctx, "upload-2", "auth.log.gz")
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "compressed auth log line", string(data))
}
