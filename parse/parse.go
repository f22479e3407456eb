package parse

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"repo-view/model"
)

var ErrInvalidViewURL = errors.New("invalid view URL")

// /owner/id[/path...]
var viewRegex = regexp.MustCompile(`^/([^/]+)/([^/]+)(?:/(.*))?$`)

// ParseViewURL validates a viewer URL and extracts the repository and the
// path segments below it. It accepts absolute URLs, rooted paths and bare
// "owner/id/path" strings.
func ParseViewURL(raw string) (ref model.RepositoryRef, segments []string, err error) {
	parsedURL, err := url.Parse(raw)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrInvalidViewURL, raw)
		return
	}

	urlPath := parsedURL.EscapedPath()
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	match := viewRegex.FindStringSubmatch(urlPath)
	if len(match) != 4 {
		err = fmt.Errorf("%w: %s\nExpected: https://host/owner/repository-id/path/to/entry", ErrInvalidViewURL, raw)
		return
	}

	owner, err := unescape(match[1])
	if err != nil {
		return
	}
	id, err := unescape(match[2])
	if err != nil {
		return
	}

	segments = []string{}
	for _, s := range strings.Split(match[3], "/") {
		if s == "" {
			continue
		}
		decoded, uerr := unescape(s)
		if uerr != nil {
			err = uerr
			return
		}
		segments = append(segments, decoded)
	}

	ref = model.RepositoryRef{Owner: owner, ID: id}
	return ref, segments, nil
}

func unescape(s string) (string, error) {
	decoded, err := url.PathUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: bad escape in %q", ErrInvalidViewURL, s)
	}
	return decoded, nil
}
