package fetcher_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"repo-view/api"
	"repo-view/fetcher"
	"repo-view/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ref = model.RepositoryRef{Owner: "alice", ID: "6a1f0c2e"}

func TestDownloadArchive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/alice/zip/6a1f0c2e", r.URL.Path)
		w.Header().Set("Content-Disposition", `attachment; filename="tools.zip"`)
		fmt.Fprint(w, "PK\x03\x04archive")
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL+"/api", "", srv.Client())
	require.NoError(t, err)

	dir := t.TempDir()
	var savedPath string
	d := fetcher.New(client, dir, fetcher.WithProgressOutput(io.Discard), fetcher.WithBarStyle("#"))
	d.Saved = func(path string, size int64) {
		savedPath = path
		assert.Equal(t, int64(11), size)
	}

	require.NoError(t, d.DownloadArchive(context.Background(), ref))

	assert.Equal(t, filepath.Join(dir, "tools.zip"), savedPath)
	b, err := os.ReadFile(savedPath)
	require.NoError(t, err)
	assert.Equal(t, "PK\x03\x04archive", string(b))
}

func TestDownloadArchiveForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"download not allowed"}`)
	}))
	defer srv.Close()

	client, err := api.NewClient(srv.URL, "", srv.Client())
	require.NoError(t, err)

	dir := t.TempDir()
	err = fetcher.New(client, dir, fetcher.WithProgressOutput(io.Discard)).DownloadArchive(context.Background(), ref)
	assert.ErrorIs(t, err, api.ErrForbidden)

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

type archiveFunc func(ctx context.Context, ref model.RepositoryRef) (*api.Archive, error)

func (f archiveFunc) Archive(ctx context.Context, ref model.RepositoryRef) (*api.Archive, error) {
	return f(ctx, ref)
}

type errReader struct{ err error }

func (r errReader) Read([]byte) (int, error) { return 0, r.err }

func TestDownloadArchiveInterrupted(t *testing.T) {
	source := archiveFunc(func(context.Context, model.RepositoryRef) (*api.Archive, error) {
		return &api.Archive{
			Body:     io.NopCloser(io.MultiReader(strings.NewReader("PK"), errReader{errors.New("unexpected EOF")})),
			Size:     -1,
			Filename: "tools.zip",
		}, nil
	})

	dir := t.TempDir()
	err := fetcher.New(source, dir, fetcher.WithProgressOutput(io.Discard)).DownloadArchive(context.Background(), ref)
	assert.ErrorContains(t, err, "unexpected EOF")

	_, statErr := os.Stat(filepath.Join(dir, "tools.zip"))
	assert.True(t, os.IsNotExist(statErr))
}
