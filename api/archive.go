package api

import (
	"context"
	"fmt"
	"io"
	"mime"

	"repo-view/model"
)

// Archive is an open archive download. Size is -1 when the server did not
// announce a length.
type Archive struct {
	Body     io.ReadCloser
	Size     int64
	Filename string
}

// Archive opens the zip stream of a whole repository. The caller closes
// Body. The server refuses the download unless the caller owns the
// repository or the repository allows downloads.
func (c *Client) Archive(ctx context.Context, ref model.RepositoryRef) (*Archive, error) {
	req, err := c.newRequest(ctx, c.endpoint(ref.Owner, "zip", ref.ID))
	if err != nil {
		return nil, fmt.Errorf("creating archive request for %s/%s: %w", ref.Owner, ref.ID, err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("archive %s/%s: %w", ref.Owner, ref.ID, err)
	}

	return &Archive{
		Body:     resp.Body,
		Size:     resp.ContentLength,
		Filename: archiveFilename(resp.Header.Get("Content-Disposition"), ref),
	}, nil
}

func archiveFilename(disposition string, ref model.RepositoryRef) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return ref.ID + ".zip"
}
