package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fileSource writes fixed bytes to a temp file per download.
type fileSource struct {
	dir   string
	data  []byte
	err   error
	paths []string
	asDir bool
}

func (s *fileSource) Download(ctx context.Context, ref string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	path := filepath.Join(s.dir, ref)
	if s.asDir {
		if err := os.Mkdir(path, 0o755); err != nil {
			return "", err
		}
	} else if err := os.WriteFile(path, s.data, 0o600); err != nil {
		return "", err
	}
	s.paths = append(s.paths, path)
	return path, nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestEncodeDataURI(t *testing.T) {
	src := &fileSource{dir: t.TempDir(), data: []byte("jpeg-ish bytes")}

	uri, err := EncodeDataURI(context.Background(), src, "photo-1")
	require.NoError(t, err)
	assert.Equal(t, "data:image/jpeg;base64,anBlZy1pc2ggYnl0ZXM=", uri)

	require.Len(t, src.paths, 1)
	assert.NoFileExists(t, src.paths[0])
}

func TestEncodeDataURIDetectsPNG(t *testing.T) {
	src := &fileSource{dir: t.TempDir(), data: pngHeader}

	uri, err := EncodeDataURI(context.Background(), src, "photo-2")
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")
}

func TestEncodeDataURIRemovesFileWhenReadFails(t *testing.T) {
	// A directory cannot be read as a file, but os.Remove still deletes it.
	src := &fileSource{dir: t.TempDir(), asDir: true}

	_, err := EncodeDataURI(context.Background(), src, "photo-3")
	require.Error(t, err)

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "read", re.Op)
	assert.Equal(t, "photo-3", re.Ref)

	require.Len(t, src.paths, 1)
	assert.NoDirExists(t, src.paths[0])
}

func TestEncodeDataURIDownloadError(t *testing.T) {
	boom := errors.New("boom")
	_, err := EncodeDataURI(context.Background(), &fileSource{err: boom}, "photo-4")

	var re *ResolutionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "download", re.Op)
	assert.ErrorIs(t, err, boom)
}

func TestEncodeDataURINilSource(t *testing.T) {
	_, err := EncodeDataURI(context.Background(), nil, "x")
	assert.Error(t, err)
}

func TestDetectMIME(t *testing.T) {
	assert.Equal(t, DefaultMIME, DetectMIME(nil))
	assert.Equal(t, DefaultMIME, DetectMIME([]byte("plain text")))
	assert.Equal(t, "image/png", DetectMIME(pngHeader))
	assert.Equal(t, "image/gif", DetectMIME([]byte("GIF89a......")))
}
