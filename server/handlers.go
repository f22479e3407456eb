package server

import (
	"context"
	"errors"
	"html/template"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"repo-view/api"
	"repo-view/helpers"
	"repo-view/highlight"
	"repo-view/model"
	"repo-view/parse"
	"repo-view/viewer"

	chi "github.com/go-chi/chi/v5"
	"golang.org/x/net/xsrftoken"
)

type okResp struct {
	RequestID string `json:"request_id"`
}

func (s *Server) serveOK(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, Logger(r), okResp{RequestID: RequestID(r)})
}

// resolve runs a viewer for one location and returns its settled view.
func (s *Server) resolve(r *http.Request, ref model.RepositoryRef, segments []string, d viewer.Downloader) (*viewer.Viewer, viewer.View, error) {
	v := viewer.New(s.backend, d, viewer.StaticUser(s.username), viewer.WithLogger(Logger(r)))
	v.Navigate(ref, segments)
	view, err := v.Wait(r.Context())
	if err != nil {
		v.Close()
		return nil, view, err
	}
	return v, view, nil
}

func (s *Server) serveView(w http.ResponseWriter, r *http.Request) {
	ref, segments, err := parse.ParseViewURL(r.URL.EscapedPath())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, view, err := s.resolve(r, ref, segments, nil)
	if err != nil {
		return
	}
	defer v.Close()

	renderHTML(w, Logger(r), "view", s.viewPage(view))
}

func (s *Server) serveViewJSON(w http.ResponseWriter, r *http.Request) {
	ref, segments, err := parse.ParseViewURL(strings.TrimPrefix(r.URL.EscapedPath(), "/_view"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v, view, err := s.resolve(r, ref, segments, nil)
	if err != nil {
		return
	}
	defer v.Close()

	renderJSON(w, Logger(r), s.viewModel(view))
}

type repositoryLink struct {
	Name   string
	Href   string
	Public bool
}

type repositoriesPage struct {
	Title        string
	Username     string
	Repositories []repositoryLink
	Error        string
}

func (s *Server) serveRepositories(w http.ResponseWriter, r *http.Request) {
	page := repositoriesPage{Title: "Repositories", Username: s.username}

	repos, err := s.backend.Repositories(r.Context())
	if err != nil {
		Logger(r).WithError(err).Warn("listing repositories")
		page.Error = errorText(err)
	}
	for _, repo := range repos {
		link := repositoryLink{Name: repo.Name, Public: repo.Public}
		if s.username != "" {
			link.Href = viewHref(model.RepositoryRef{Owner: s.username, ID: repo.UUID}, "")
		}
		page.Repositories = append(page.Repositories, link)
	}

	renderHTML(w, Logger(r), "repositories", page)
}

// serveArchive proxies the archive of a repository. The link must carry a
// token issued by this server, and the download goes through a viewer so
// the permission is derived from fresh content.
func (s *Server) serveArchive(w http.ResponseWriter, r *http.Request) {
	owner, err1 := url.PathUnescape(chi.URLParam(r, "owner"))
	id, err2 := url.PathUnescape(chi.URLParam(r, "id"))
	if err := errors.Join(err1, err2); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ref := model.RepositoryRef{Owner: owner, ID: id}

	if !xsrftoken.Valid(r.FormValue("token"), s.key, s.username, archiveAction(ref)) {
		http.Error(w, "Invalid XSRF token", http.StatusForbidden)
		return
	}

	stream := &archiveStream{source: s.backend, w: w}
	v, view, err := s.resolve(r, ref, nil, stream)
	if err != nil {
		return
	}
	defer v.Close()

	switch view.Status {
	case viewer.StatusError:
		http.Error(w, view.Message, http.StatusBadGateway)
		return
	case viewer.StatusEmpty:
		http.NotFound(w, r)
		return
	}

	done, ok := v.RequestDownload(r.Context())
	if !ok {
		http.Error(w, "Download not permitted", http.StatusForbidden)
		return
	}
	if err := <-done; err != nil {
		if stream.started {
			Logger(r).WithError(err).Warn("archive stream interrupted")
			return
		}
		httpError(w, err)
	}
}

// archiveStream is a viewer.Downloader that copies the archive into an
// HTTP response.
type archiveStream struct {
	source  Backend
	w       http.ResponseWriter
	started bool
}

func (a *archiveStream) DownloadArchive(ctx context.Context, ref model.RepositoryRef) error {
	archive, err := a.source.Archive(ctx, ref)
	if err != nil {
		return err
	}
	defer archive.Body.Close()

	name, err := helpers.SafeFilename(archive.Filename)
	if err != nil {
		name = ref.ID + ".zip"
	}

	h := a.w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	if archive.Size >= 0 {
		h.Set("Content-Length", strconv.FormatInt(archive.Size, 10))
	}
	a.started = true
	_, err = io.Copy(a.w, archive.Body)
	return err
}

func archiveAction(ref model.RepositoryRef) string {
	return "zip/" + ref.Owner + "/" + ref.ID
}

func (s *Server) downloadURL(ref model.RepositoryRef) string {
	tok := xsrftoken.Generate(s.key, s.username, archiveAction(ref))
	return "/" + url.PathEscape(ref.Owner) + "/zip/" + url.PathEscape(ref.ID) + "?token=" + url.QueryEscape(tok)
}

// viewHref links to path inside ref on this server.
func viewHref(ref model.RepositoryRef, path string) string {
	segments := append([]string{ref.Owner, ref.ID}, parse.Split(path)...)
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/" + strings.Join(segments, "/")
}

type link struct {
	Name  string
	Href  string
	IsDir bool
}

type viewPage struct {
	Title       string
	Status      string
	Message     string
	Crumbs      []link
	ParentHref  string
	DownloadURL string
	IsDirectory bool
	Entries     []link
	Filename    string
	Code        template.HTML
	Preview     template.HTML
}

func (s *Server) viewPage(view viewer.View) viewPage {
	page := viewPage{
		Title:   view.Key.Ref.Owner + "/" + view.Key.Ref.ID,
		Status:  view.Status.String(),
		Message: view.Message,
	}
	if view.Status != viewer.StatusLoaded {
		return page
	}

	for _, c := range view.Breadcrumbs {
		page.Crumbs = append(page.Crumbs, link{Name: c.Label, Href: viewHref(view.Key.Ref, c.Target)})
	}
	if len(view.Breadcrumbs) > 0 {
		page.Title = view.Breadcrumbs[len(view.Breadcrumbs)-1].Label
	}
	if !view.AtRoot() {
		page.ParentHref = viewHref(view.Key.Ref, view.ParentPath)
	}
	if view.CanDownload {
		page.DownloadURL = s.downloadURL(view.Key.Ref)
	}

	switch c := view.Content.(type) {
	case *model.Directory:
		page.IsDirectory = true
		for _, e := range c.Entries {
			page.Entries = append(page.Entries, link{
				Name:  e.Name,
				Href:  viewHref(view.Key.Ref, parse.ChildPath(view.Key.Path, e.Name)),
				IsDir: e.IsDir(),
			})
		}
	case *model.File:
		page.Filename = highlight.DisplayName(c.Path)
		code, err := highlight.HTML(view.Language, c.Data)
		if err != nil {
			code = template.HTML("<pre>" + template.HTMLEscapeString(c.Data) + "</pre>")
		}
		page.Code = code
		if view.Language == "markdown" {
			page.Preview = highlight.Markdown(c.Data)
		}
	}
	return page
}

type crumbJSON struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

type entryJSON struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
}

type viewJSON struct {
	Owner          string      `json:"owner"`
	RepositoryID   string      `json:"repository_id"`
	Path           string      `json:"path"`
	Status         string      `json:"status"`
	Error          string      `json:"error,omitempty"`
	RepositoryName string      `json:"repo_name,omitempty"`
	Breadcrumbs    []crumbJSON `json:"breadcrumbs,omitempty"`
	ParentPath     *string     `json:"parent_path,omitempty"`
	CanDownload    bool        `json:"can_download"`
	DownloadURL    string      `json:"download_url,omitempty"`
	IsDirectory    bool        `json:"isDirectory"`
	Entries        []entryJSON `json:"entries,omitempty"`
	Filename       string      `json:"filename,omitempty"`
	Language       string      `json:"language,omitempty"`
	Data           string      `json:"data,omitempty"`
}

func (s *Server) viewModel(view viewer.View) viewJSON {
	out := viewJSON{
		Owner:        view.Key.Ref.Owner,
		RepositoryID: view.Key.Ref.ID,
		Path:         view.Key.Path,
		Status:       view.Status.String(),
		Error:        view.Message,
		CanDownload:  view.CanDownload,
	}
	if view.Status != viewer.StatusLoaded {
		return out
	}

	out.RepositoryName = view.Content.Repository()
	for _, c := range view.Breadcrumbs {
		out.Breadcrumbs = append(out.Breadcrumbs, crumbJSON{Label: c.Label, Target: c.Target})
	}
	if !view.AtRoot() {
		parent := view.ParentPath
		out.ParentPath = &parent
	}
	if view.CanDownload {
		out.DownloadURL = s.downloadURL(view.Key.Ref)
	}

	switch c := view.Content.(type) {
	case *model.Directory:
		out.IsDirectory = true
		out.Entries = make([]entryJSON, 0, len(c.Entries))
		for _, e := range c.Entries {
			out.Entries = append(out.Entries, entryJSON{Name: e.Name, IsDir: e.IsDir()})
		}
	case *model.File:
		out.Filename = highlight.DisplayName(c.Path)
		out.Language = view.Language
		out.Data = c.Data
	}
	return out
}

func errorText(err error) string {
	var re *api.ResponseError
	if errors.As(err, &re) && re.ErrorMessage() != "" {
		return re.ErrorMessage()
	}
	return err.Error()
}
