package model

// RepositoryRef identifies a repository by its owner and opaque ID.
type RepositoryRef struct {
	Owner string
	ID    string
}

// ViewKey is the navigation key of the viewer: a repository plus a
// canonical path inside it.
type ViewKey struct {
	Ref  RepositoryRef
	Path string
}

type EntryKind int

const (
	KindFile EntryKind = iota
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// DirectoryEntry is one child of a directory listing. Name never carries
// the wire marker used to flag directories.
type DirectoryEntry struct {
	Name string
	Kind EntryKind
}

func (e DirectoryEntry) IsDir() bool {
	return e.Kind == KindDirectory
}

// Content is the result of resolving a path: either *Directory or *File.
type Content interface {
	content()
	Repository() string
	AllowsDownload() bool
}

type Directory struct {
	RepositoryName  string
	Path            string
	Entries         []DirectoryEntry
	DownloadAllowed bool
}

func (*Directory) content() {}
func (d *Directory) Repository() string { return d.RepositoryName }
func (d *Directory) AllowsDownload() bool { return d.DownloadAllowed }

type File struct {
	RepositoryName  string
	Path            string
	Data            string
	DownloadAllowed bool
}

func (*File) content() {}
func (f *File) Repository() string { return f.RepositoryName }
func (f *File) AllowsDownload() bool { return f.DownloadAllowed }

// Breadcrumb is one navigable step from the repository root to the current
// location.
type Breadcrumb struct {
	Label  string
	Target string
}

// Repository is a row of the owner's repository list.
type Repository struct {
	ID        int64  `json:"id,omitempty"`
	UUID      string `json:"uuid"`
	Name      string `json:"name"`
	Public    bool   `json:"public"`
	OwnerID   int64  `json:"owner_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}
