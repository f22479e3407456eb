package viewer

import (
	"repo-view/model"
)

type Status int

const (
	StatusLoading Status = iota
	StatusError
	StatusEmpty
	StatusLoaded
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusError:
		return "error"
	case StatusEmpty:
		return "empty"
	case StatusLoaded:
		return "loaded"
	}
	return "unknown"
}

// FallbackMessage is shown when a fetch fails without a server message.
const FallbackMessage = "failed to load repository contents"

// View is a render-ready snapshot of the viewer. Only the fields of the
// current Status are set: Message for StatusError, the rest for
// StatusLoaded. The zero View is loading.
type View struct {
	Key    model.ViewKey
	Status Status

	Message string

	Content     model.Content
	Breadcrumbs []model.Breadcrumb
	ParentPath  string
	CanDownload bool
	// Language is set for file content only.
	Language string
}

// AtRoot reports whether the view shows the repository root.
func (v View) AtRoot() bool {
	return v.Key.Path == ""
}

// Directory returns the listing when the view shows a directory.
func (v View) Directory() (*model.Directory, bool) {
	d, ok := v.Content.(*model.Directory)
	return d, ok
}

// File returns the file when the view shows one.
func (v View) File() (*model.File, bool) {
	f, ok := v.Content.(*model.File)
	return f, ok
}

// DownloadPermitted reports whether username may download a repository
// owned by owner whose content carries downloadAllowed.
func DownloadPermitted(username, owner string, downloadAllowed bool) bool {
	return (username != "" && username == owner) || downloadAllowed
}
