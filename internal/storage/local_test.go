package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/memefeed/internal/config"
	"github.com/timmy/memefeed/internal/domain"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "drafts/a.png", strings.NewReader("pixels"), 6, "image/png"))

	ok, err := s.Exists(ctx, "drafts/a.png")
	require.NoError(t, err)
	assert.True(t, ok)

	rc, err := s.Download(ctx, "drafts/a.png")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	require.NoError(t, s.Delete(ctx, "drafts/a.png"))
	require.NoError(t, s.Delete(ctx, "drafts/a.png"))

	_, err = s.Download(ctx, "drafts/a.png")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLocalStorageKeysStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(root, "")
	require.NoError(t, err)

	require.NoError(t, s.Upload(ctx, "../../escape.png", strings.NewReader("x"), 1, "image/png"))
	p, err := s.path("../../escape.png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p, root))
}

func TestLocalStorageURL(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir(), "https://cdn.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/drafts/a.png", s.GetURL("drafts/a.png"))

	s, err = NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	assert.Empty(t, s.GetURL("drafts/a.png"))
}

func TestDetectStorageType(t *testing.T) {
	tests := []struct {
		endpoint string
		want     StorageType
	}{
		{"https://abc.r2.cloudflarestorage.com", StorageTypeR2},
		{"s3.us-east-1.amazonaws.com", StorageTypeS3},
		{"localhost:9000", StorageTypeS3Compatible},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectStorageType(tt.endpoint), tt.endpoint)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/bucket/"))
	assert.Equal(t, "s3.amazonaws.com", normalizeEndpoint("https://s3.amazonaws.com"))
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(&config.StorageConfig{Type: "local", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStorage{}, s)

	_, err = NewStorage(&config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}
