package parse

import (
	"fmt"
	"strings"

	"repo-view/model"
)

// DefaultRepositoryName labels the root breadcrumb when the server omitted
// the repository name.
const DefaultRepositoryName = "Repository"

// Canonicalize joins route segments into a virtual path, dropping empty
// segments. Zero segments yield the empty (root) path.
func Canonicalize(segments []string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "/")
}

// Split is the inverse of Canonicalize.
func Split(path string) []string {
	parts := []string{}
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

func Depth(path string) int {
	return len(Split(path))
}

// ParentOf returns path without its last segment. The parent of the root is
// the root.
func ParentOf(path string) string {
	parts := Split(path)
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], "/")
}

// ChildPath builds the path of an entry listed in parent. It is the link
// target used by directory listings.
func ChildPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

// Breadcrumbs returns the root crumb followed by one crumb per segment of
// path. Crumb i targets the first i segments.
func Breadcrumbs(owner, repositoryID, repositoryName, path string) []model.Breadcrumb {
	if repositoryName == "" {
		repositoryName = DefaultRepositoryName
	}
	parts := Split(path)
	crumbs := make([]model.Breadcrumb, 0, len(parts)+1)
	crumbs = append(crumbs, model.Breadcrumb{
		Label:  fmt.Sprintf("%s's %s", owner, repositoryName),
		Target: "",
	})
	for i, part := range parts {
		crumbs = append(crumbs, model.Breadcrumb{
			Label:  part,
			Target: strings.Join(parts[:i+1], "/"),
		})
	}
	return crumbs
}
