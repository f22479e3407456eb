// Package viewer resolves a repository location into a render-ready view.
//
// A Viewer holds exactly one navigation key at a time. Each new key resets
// the view to loading and starts a fetch; a response that arrives after the
// key moved on is dropped, so a slow answer can never overwrite the view of
// a newer location.
package viewer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"repo-view/highlight"
	"repo-view/model"
	"repo-view/parse"

	"github.com/sirupsen/logrus"
)

// Fetcher loads the content at a path. A nil content with a nil error means
// the server answered with an empty body.
type Fetcher interface {
	Contents(ctx context.Context, ref model.RepositoryRef, path string) (model.Content, error)
}

// Downloader fetches the archive of a whole repository.
type Downloader interface {
	DownloadArchive(ctx context.Context, ref model.RepositoryRef) error
}

// Session reports the signed-in user. An empty name is an anonymous viewer.
type Session interface {
	Username() string
}

// StaticUser is a Session for a fixed user name.
type StaticUser string

func (u StaticUser) Username() string { return string(u) }

type Option func(*Viewer)

func WithLogger(log *logrus.Entry) Option {
	return func(v *Viewer) {
		v.log = log
	}
}

// WithOnChange registers fn to receive every view transition in order. fn
// runs outside the viewer's lock and may read the viewer, but must not
// navigate synchronously.
func WithOnChange(fn func(View)) Option {
	return func(v *Viewer) {
		v.onChange = fn
	}
}

type Viewer struct {
	fetcher    Fetcher
	downloader Downloader
	session    Session
	log        *logrus.Entry
	onChange   func(View)

	mu      sync.Mutex
	started bool
	gen     uint64
	seq     uint64
	view    View
	cancel  context.CancelFunc
	changed chan struct{}

	notifyMu sync.Mutex
	notified uint64

	downloading atomic.Bool
}

// New returns an idle Viewer. Nothing is fetched until the first
// navigation. A nil session is treated as an anonymous viewer and a nil
// downloader disables downloads.
func New(fetcher Fetcher, downloader Downloader, session Session, opts ...Option) *Viewer {
	v := &Viewer{
		fetcher:    fetcher,
		downloader: downloader,
		session:    session,
		log:        logrus.NewEntry(logrus.StandardLogger()),
		changed:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Navigate moves the viewer to the location named by route segments.
func (v *Viewer) Navigate(ref model.RepositoryRef, segments []string) {
	v.NavigateTo(model.ViewKey{Ref: ref, Path: parse.Canonicalize(segments)})
}

// NavigateTo moves the viewer to key. Navigating to the current key does
// nothing; there is no retry at this layer.
func (v *Viewer) NavigateTo(key model.ViewKey) {
	v.navigate(false, func(model.ViewKey) (model.ViewKey, bool) {
		return key, true
	})
}

// GoToParent navigates to the parent of the current location within the
// same repository. At the root it does nothing.
func (v *Viewer) GoToParent() {
	v.navigate(true, func(cur model.ViewKey) (model.ViewKey, bool) {
		if cur.Path == "" {
			return cur, false
		}
		return model.ViewKey{Ref: cur.Ref, Path: parse.ParentOf(cur.Path)}, true
	})
}

// GoToEntry navigates into a child of the current location.
func (v *Viewer) GoToEntry(entry model.DirectoryEntry) {
	v.navigate(true, func(cur model.ViewKey) (model.ViewKey, bool) {
		return model.ViewKey{Ref: cur.Ref, Path: parse.ChildPath(cur.Path, entry.Name)}, true
	})
}

// navigate computes the next key from the current one under the lock.
// Relative moves need a current location.
func (v *Viewer) navigate(relative bool, next func(cur model.ViewKey) (model.ViewKey, bool)) {
	v.mu.Lock()
	if relative && !v.started {
		v.mu.Unlock()
		return
	}
	key, ok := next(v.view.Key)
	if !ok {
		v.mu.Unlock()
		return
	}
	key.Path = parse.Canonicalize(parse.Split(key.Path))
	if v.started && key == v.view.Key {
		v.mu.Unlock()
		return
	}

	if v.cancel != nil {
		v.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	v.started = true
	v.gen++
	v.cancel = cancel
	gen := v.gen
	seq, view := v.transition(View{Key: key, Status: StatusLoading})
	v.mu.Unlock()

	v.log.WithFields(logrus.Fields{
		"owner":      key.Ref.Owner,
		"repository": key.Ref.ID,
		"path":       key.Path,
	}).Debug("navigate")
	v.notify(seq, view)

	go v.fetch(ctx, gen, key)
}

// transition installs view and wakes waiters. Callers hold v.mu.
func (v *Viewer) transition(view View) (uint64, View) {
	v.view = view
	v.seq++
	close(v.changed)
	v.changed = make(chan struct{})
	return v.seq, view
}

func (v *Viewer) fetch(ctx context.Context, gen uint64, key model.ViewKey) {
	content, err := v.fetcher.Contents(ctx, key.Ref, key.Path)
	v.settle(gen, key, content, err)
}

func (v *Viewer) settle(gen uint64, key model.ViewKey, content model.Content, err error) {
	log := v.log.WithFields(logrus.Fields{
		"owner":      key.Ref.Owner,
		"repository": key.Ref.ID,
		"path":       key.Path,
	})

	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		log.Debug("discarding stale response")
		return
	}
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	seq, view := v.transition(v.resolve(key, content, err))
	v.mu.Unlock()

	if err != nil {
		log.WithError(err).Warn("fetch failed")
	}
	v.notify(seq, view)
}

func (v *Viewer) resolve(key model.ViewKey, content model.Content, err error) View {
	view := View{Key: key}
	switch {
	case err != nil:
		view.Status = StatusError
		view.Message = errorMessage(err)
	case isEmpty(content):
		view.Status = StatusEmpty
	default:
		view.Status = StatusLoaded
		view.Content = content
		view.Breadcrumbs = parse.Breadcrumbs(key.Ref.Owner, key.Ref.ID, content.Repository(), key.Path)
		view.ParentPath = parse.ParentOf(key.Path)
		view.CanDownload = DownloadPermitted(v.username(), key.Ref.Owner, content.AllowsDownload())
		if f, ok := content.(*model.File); ok {
			view.Language = highlight.Language(f.Path)
		}
	}
	return view
}

func isEmpty(content model.Content) bool {
	switch c := content.(type) {
	case nil:
		return true
	case *model.Directory:
		return c == nil
	case *model.File:
		return c == nil
	}
	return false
}

// messenger is implemented by collaborator errors that carry a message
// meant for the user.
type messenger interface {
	ErrorMessage() string
}

func errorMessage(err error) string {
	var m messenger
	if errors.As(err, &m) && m.ErrorMessage() != "" {
		return m.ErrorMessage()
	}
	return FallbackMessage
}

func (v *Viewer) username() string {
	if v.session == nil {
		return ""
	}
	return v.session.Username()
}

func (v *Viewer) notify(seq uint64, view View) {
	if v.onChange == nil {
		return
	}
	v.notifyMu.Lock()
	defer v.notifyMu.Unlock()
	if seq <= v.notified {
		return
	}
	v.notified = seq
	v.onChange(view)
}

// View returns the current snapshot.
func (v *Viewer) View() View {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.view
}

// Wait blocks until the current location has settled (any status but
// loading) or ctx is done. A Viewer that never navigated never settles.
func (v *Viewer) Wait(ctx context.Context) (View, error) {
	for {
		v.mu.Lock()
		view, changed, started := v.view, v.changed, v.started
		v.mu.Unlock()

		if started && view.Status != StatusLoading {
			return view, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return view, ctx.Err()
		}
	}
}

// Close cancels any fetch in flight and forgets the current location.
// Late responses are dropped. A closed Viewer is idle again: the next
// navigation fetches even if it names the key it was closed on.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	v.started = false
	v.view = View{}
}

// Downloading reports whether an archive download is in flight.
func (v *Viewer) Downloading() bool {
	return v.downloading.Load()
}

// RequestDownload starts downloading the current repository's archive. It
// returns false, without contacting the downloader, when the view is not
// loaded, downloading is not permitted, or a download is already running.
// The returned channel yields the download's result once.
func (v *Viewer) RequestDownload(ctx context.Context) (<-chan error, bool) {
	view := v.View()
	if view.Status != StatusLoaded || !view.CanDownload || v.downloader == nil {
		return nil, false
	}
	if !v.downloading.CompareAndSwap(false, true) {
		v.log.WithField("repository", view.Key.Ref.ID).Debug("download already in flight")
		return nil, false
	}

	done := make(chan error, 1)
	go func() {
		err := v.downloader.DownloadArchive(ctx, view.Key.Ref)
		v.downloading.Store(false)
		if err != nil {
			v.log.WithError(err).WithField("repository", view.Key.Ref.ID).Warn("download failed")
		}
		done <- err
		close(done)
	}()
	return done, true
}
