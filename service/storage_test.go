package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadStoreSave(t *testing.T) {
	root := t.TempDir()
	store := NewUploadStore(root)

	url, err := store.Save("ai-assistant", "files", "Notes.TXT", []byte("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/uploads/ai-assistant/files-"))
	assert.True(t, strings.HasSuffix(url, ".txt"))

	data, err := os.ReadFile(filepath.Join(root, "ai-assistant", filepath.Base(url)))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestRenderMarkdown(t *testing.T) {
	html, err := RenderMarkdown("**bold** and ~~gone~~")
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>bold</strong>")
	assert.Contains(t, html, "<del>gone</del>")
}
