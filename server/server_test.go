package server_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"repo-view/api"
	"repo-view/model"
	"repo-view/server"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu           sync.Mutex
	contents     map[string]model.Content
	repos        []model.Repository
	archiveCalls atomic.Int32
	paths        []string
}

func (b *fakeBackend) set(path string, c model.Content) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.contents[path] = c
}

func (b *fakeBackend) Contents(_ context.Context, ref model.RepositoryRef, path string) (model.Content, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.paths = append(b.paths, path)
	c, ok := b.contents[path]
	if !ok {
		return nil, &api.ResponseError{StatusCode: http.StatusNotFound, Message: "not found"}
	}
	return c, nil
}

func (b *fakeBackend) Archive(_ context.Context, ref model.RepositoryRef) (*api.Archive, error) {
	b.archiveCalls.Add(1)
	return &api.Archive{
		Body:     io.NopCloser(strings.NewReader("PK\x03\x04")),
		Size:     4,
		Filename: "../tools.zip",
	}, nil
}

func (b *fakeBackend) Repositories(context.Context) ([]model.Repository, error) {
	return b.repos, nil
}

func newBackend() *fakeBackend {
	return &fakeBackend{
		contents: map[string]model.Content{
			"": &model.Directory{
				RepositoryName: "tools",
				Entries: []model.DirectoryEntry{
					{Name: "README.md", Kind: model.KindFile},
					{Name: "docs notes", Kind: model.KindDirectory},
					{Name: "src", Kind: model.KindDirectory},
				},
			},
			"docs notes": &model.Directory{RepositoryName: "tools", Path: "docs notes"},
			"README.md": &model.File{
				RepositoryName: "tools",
				Path:           "README.md",
				Data:           "# Tools\n\n<script>alert(1)</script>\n",
			},
			"src/lib/utils.ts": &model.File{
				RepositoryName: "tools",
				Path:           "src/lib/utils.ts",
				Data:           "export const x = 1;\n",
			},
		},
		repos: []model.Repository{
			{UUID: "repo1", Name: "tools", Public: true},
			{UUID: "repo2", Name: "notes", Public: false},
		},
	}
}

func newServer(t *testing.T, backend server.Backend, username string) *server.Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := server.New(backend, username, server.WithLogger(logrus.NewEntry(log)))
	require.NoError(t, err)
	return s
}

func get(s http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

type viewResp struct {
	Status      string  `json:"status"`
	Error       string  `json:"error"`
	Path        string  `json:"path"`
	RepoName    string  `json:"repo_name"`
	ParentPath  *string `json:"parent_path"`
	CanDownload bool    `json:"can_download"`
	DownloadURL string  `json:"download_url"`
	IsDirectory bool    `json:"isDirectory"`
	Language    string  `json:"language"`
	Filename    string  `json:"filename"`
	Entries     []struct {
		Name  string `json:"name"`
		IsDir bool   `json:"is_dir"`
	} `json:"entries"`
	Breadcrumbs []struct {
		Label  string `json:"label"`
		Target string `json:"target"`
	} `json:"breadcrumbs"`
}

func getView(t *testing.T, s http.Handler, target string) viewResp {
	t.Helper()
	rec := get(s, target)
	require.Equal(t, http.StatusOK, rec.Code)
	var v viewResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestOK(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	rec := get(s, "/_ok")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RequestID)
	assert.Equal(t, resp.RequestID, rec.Header().Get("X-Request-Id"))
}

func TestViewJSONRootDirectory(t *testing.T) {
	s := newServer(t, newBackend(), "bob")
	v := getView(t, s, "/_view/alice/repo1")

	assert.Equal(t, "loaded", v.Status)
	assert.Equal(t, "tools", v.RepoName)
	assert.True(t, v.IsDirectory)
	assert.Nil(t, v.ParentPath)
	assert.False(t, v.CanDownload)
	assert.Empty(t, v.DownloadURL)
	require.Len(t, v.Entries, 3)
	assert.True(t, v.Entries[1].IsDir)
	require.Len(t, v.Breadcrumbs, 1)
	assert.Equal(t, "alice's tools", v.Breadcrumbs[0].Label)
}

func TestViewJSONFileAsOwner(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	v := getView(t, s, "/_view/alice/repo1/src/lib/utils.ts")

	assert.Equal(t, "loaded", v.Status)
	assert.Equal(t, "src/lib/utils.ts", v.Path)
	require.NotNil(t, v.ParentPath)
	assert.Equal(t, "src/lib", *v.ParentPath)
	assert.Equal(t, "typescript", v.Language)
	assert.Equal(t, "utils.ts", v.Filename)
	assert.True(t, v.CanDownload)
	assert.True(t, strings.HasPrefix(v.DownloadURL, "/alice/zip/repo1?token="))
	assert.Len(t, v.Breadcrumbs, 4)
}

func TestViewJSONError(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	v := getView(t, s, "/_view/alice/repo1/missing")

	assert.Equal(t, "error", v.Status)
	assert.Equal(t, "not found", v.Error)
}

func TestViewJSONCORS(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	req := httptest.NewRequest(http.MethodGet, "/_view/alice/repo1", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestViewHTMLDirectory(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	rec := get(s, "/alice/repo1")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `href="/alice/repo1/docs%20notes"`)
	assert.Contains(t, body, `href="/alice/repo1/README.md"`)
	assert.Contains(t, body, "Download ZIP")
	assert.NotContains(t, body, `class="parent"`)
}

func TestViewHTMLEscapedPath(t *testing.T) {
	backend := newBackend()
	s := newServer(t, backend, "alice")
	rec := get(s, "/alice/repo1/docs%20notes")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "This directory is empty.")
	assert.Contains(t, body, `class="parent" href="/alice/repo1"`)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Contains(t, backend.paths, "docs notes")
}

func TestViewHTMLMarkdown(t *testing.T) {
	s := newServer(t, newBackend(), "bob")
	rec := get(s, "/alice/repo1/README.md")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="preview"`)
	assert.Contains(t, body, "Tools</h1>")
	assert.NotContains(t, body, "<script>")
	assert.NotContains(t, body, "Download ZIP")
	assert.Contains(t, body, `class="parent" href="/alice/repo1"`)
}

func TestViewHTMLError(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	rec := get(s, "/alice/repo1/missing")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<p class="error">not found</p>`)
}

func TestRepositories(t *testing.T) {
	s := newServer(t, newBackend(), "alice")
	rec := get(s, "/")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<a href="/alice/repo1">tools</a>`)
	assert.Contains(t, body, "notes</a> (private)")
}

func TestArchive(t *testing.T) {
	backend := newBackend()
	s := newServer(t, backend, "alice")
	v := getView(t, s, "/_view/alice/repo1")
	require.NotEmpty(t, v.DownloadURL)

	rec := get(s, v.DownloadURL)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PK\x03\x04", rec.Body.String())
	assert.Equal(t, "application/zip", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=tools.zip`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, int32(1), backend.archiveCalls.Load())
}

func TestArchiveRejectsBadToken(t *testing.T) {
	backend := newBackend()
	s := newServer(t, backend, "alice")

	for _, target := range []string{"/alice/zip/repo1", "/alice/zip/repo1?token=forged"} {
		rec := get(s, target)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}

	other := newServer(t, backend, "alice")
	v := getView(t, other, "/_view/alice/repo1")
	assert.Equal(t, http.StatusForbidden, get(s, v.DownloadURL).Code)

	assert.Equal(t, int32(0), backend.archiveCalls.Load())
}

func TestArchiveRechecksPermission(t *testing.T) {
	backend := newBackend()
	backend.set("", &model.Directory{RepositoryName: "tools", DownloadAllowed: true})
	s := newServer(t, backend, "bob")

	v := getView(t, s, "/_view/alice/repo1")
	require.True(t, v.CanDownload)

	backend.set("", &model.Directory{RepositoryName: "tools", DownloadAllowed: false})
	rec := get(s, v.DownloadURL)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, int32(0), backend.archiveCalls.Load())
}

func TestIsLocal(t *testing.T) {
	assert.NoError(t, server.IsLocal("127.0.0.1:8000"))
	assert.NoError(t, server.IsLocal("[::1]:8000"))
	assert.Error(t, server.IsLocal("8.8.8.8:80"))
	assert.Error(t, server.IsLocal("localhost"))
}
