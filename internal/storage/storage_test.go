package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderPage_EscapesText(t *testing.T) {
	body, err := RenderPage(Page{
		Title:     "Actuar",
		Text:      `<script>alert("x")</script> & más`,
		UpdatedAt: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	html := string(body)
	require.NotContains(t, html, "<script>")
	require.Contains(t, html, "&lt;script&gt;")
	require.Contains(t, html, "&amp; más")
	require.Contains(t, html, "2025-01-01T12:00:00Z")
}

func TestStorage_URL(t *testing.T) {
	s := NewStorage(nil, "/static/")
	require.Equal(t, "/static/actuar/alice.html", s.URL("actuar/alice.html"))

	s = NewStorage(nil, "https://cdn.example.com/bucket")
	require.Equal(t, "https://cdn.example.com/bucket/actuar/alice.html", s.URL("/actuar/alice.html"))
}

func TestLocalStorage_PublishPageOverwrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	backend, err := NewLocalStorage(dir)
	require.NoError(t, err)
	require.NoError(t, backend.EnsureBucket(ctx))

	s := NewStorage(backend, "/static")
	require.NoError(t, s.PublishPage(ctx, "actuar/alice.html", Page{Title: "Actuar", Text: "first text"}))
	require.NoError(t, s.PublishPage(ctx, "actuar/alice.html", Page{Title: "Actuar", Text: "second text"}))

	rc, err := s.Backend().Get(ctx, "actuar/alice.html")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)

	require.Equal(t, 1, strings.Count(string(data), "second text"))
	require.NotContains(t, string(data), "first text")

	entries, err := os.ReadDir(filepath.Join(dir, "actuar"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	backend, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, key := range []string{"../outside.html", "a/../../outside.html", "", "."} {
		err := backend.Put(context.Background(), key, strings.NewReader("x"), 1, "text/plain")
		require.Error(t, err, key)
	}
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	backend, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, backend.Delete(context.Background(), "actuar/nobody.html"))
}
