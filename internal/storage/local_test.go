package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStore(t *testing.T) {
	s := NewLocalStore("test_uploads", "http://localhost:8080/")

	require.NotNil(t, s)
	assert.Equal(t, "test_uploads", s.Dir())
	assert.Equal(t, "http://localhost:8080", s.baseURL)
}

func TestLocalStoreStore(t *testing.T) {
	tmpDir := t.TempDir()
	s := NewLocalStore(tmpDir, "http://localhost:8080")

	ref, err := s.Store(context.Background(), []byte("Test CV content"), "application/pdf", "cv-documents", "Jane Doe CV.pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.Key, "cv-documents/"))
	assert.True(t, strings.HasSuffix(ref.Key, "-Jane_Doe_CV.pdf"))
	assert.Equal(t, "http://localhost:8080/files/"+ref.Key, ref.URL)
	assert.Equal(t, "application/pdf", ref.MediaType)

	data, err := os.ReadFile(ref.URI)
	require.NoError(t, err)
	assert.Equal(t, "Test CV content", string(data))

	opened, err := s.Open(ref.Key)
	require.NoError(t, err)
	assert.Equal(t, "Test CV content", string(opened))
}

func TestLocalStoreNeverOverwrites(t *testing.T) {
	s := NewLocalStore(t.TempDir(), "http://localhost")

	first, err := s.Store(context.Background(), []byte("one"), "application/pdf", "cv-documents", "cv.pdf")
	require.NoError(t, err)
	second, err := s.Store(context.Background(), []byte("two"), "application/pdf", "cv-documents", "cv.pdf")
	require.NoError(t, err)

	assert.NotEqual(t, first.Key, second.Key)
}

func TestLocalStoreOpenStaysInsideDir(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(filepath.Dir(root), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0644))
	defer os.Remove(outside)

	s := NewLocalStore(root, "http://localhost")
	_, err := s.Open("../secret.txt")
	assert.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name      string
		namespace string
		filename  string
		suffix    string
	}{
		{name: "Plain", namespace: "cv-documents", filename: "cv.pdf", suffix: "-cv.pdf"},
		{name: "Path components dropped", namespace: "/cv-documents/", filename: "../../etc/passwd", suffix: "-passwd"},
		{name: "Unsafe characters", namespace: "cv-documents", filename: "my résumé (final).docx", suffix: "-my_r_sum_final_.docx"},
		{name: "Empty name", namespace: "cv-documents", filename: "", suffix: "-document"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := ObjectKey(tt.namespace, tt.filename)
			assert.True(t, strings.HasPrefix(key, "cv-documents/"), key)
			assert.True(t, strings.HasSuffix(key, tt.suffix), key)
			assert.NotContains(t, key, "..")
		})
	}
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://storage.googleapis.com/cv-bucket/cv-documents/a.pdf", PublicURL("cv-bucket", "cv-documents/a.pdf"))
}
