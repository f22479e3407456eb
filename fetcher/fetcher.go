// Package fetcher saves repository archives to disk.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"repo-view/api"
	"repo-view/helpers"
	"repo-view/model"

	"github.com/cheggaaa/pb/v3"
	"github.com/sirupsen/logrus"
)

// ArchiveSource opens the archive stream of a repository.
type ArchiveSource interface {
	Archive(ctx context.Context, ref model.RepositoryRef) (*api.Archive, error)
}

// ArchiveDownloader writes archives into a directory, showing a progress
// bar while it copies.
type ArchiveDownloader struct {
	source   ArchiveSource
	dir      string
	barStyle string
	out      io.Writer
	log      *logrus.Entry

	// Saved is called with the path of every completed download.
	Saved func(path string, size int64)
}

type Option func(*ArchiveDownloader)

// WithProgressOutput sends the progress bar to w. io.Discard hides it.
func WithProgressOutput(w io.Writer) Option {
	return func(d *ArchiveDownloader) {
		d.out = w
	}
}

// WithBarStyle sets the glyph the progress bar fills with.
func WithBarStyle(style string) Option {
	return func(d *ArchiveDownloader) {
		d.barStyle = style
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(d *ArchiveDownloader) {
		d.log = log
	}
}

func New(source ArchiveSource, dir string, opts ...Option) *ArchiveDownloader {
	d := &ArchiveDownloader{
		source: source,
		dir:    dir,
		out:    os.Stderr,
		log:    logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DownloadArchive fetches the archive of ref and stores it under the
// download directory using the server-supplied file name.
func (d *ArchiveDownloader) DownloadArchive(ctx context.Context, ref model.RepositoryRef) error {
	archive, err := d.source.Archive(ctx, ref)
	if err != nil {
		return err
	}
	defer archive.Body.Close()

	bar := d.newBar(archive)
	bar.Start()
	path, n, err := helpers.SaveArchive(d.dir, archive.Filename, bar.NewProxyReader(archive.Body))
	bar.Finish()
	if err != nil {
		return fmt.Errorf("download %s/%s: %w", ref.Owner, ref.ID, err)
	}

	d.log.WithFields(logrus.Fields{
		"repository": ref.ID,
		"path":       path,
		"size":       helpers.FormatBytes(n),
	}).Info("archive saved")
	if d.Saved != nil {
		d.Saved(path, n)
	}
	return nil
}

func (d *ArchiveDownloader) newBar(archive *api.Archive) *pb.ProgressBar {
	total := archive.Size
	if total < 0 {
		total = 0
	}
	bar := pb.New64(total)
	bar.Set(pb.Bytes, true)
	bar.Set("prefix", archive.Filename+" ")
	bar.SetWriter(d.out)
	if d.barStyle != "" {
		fill := strconv.Quote(d.barStyle)
		bar.SetTemplateString(`{{string . "prefix"}}{{counters . }} {{bar . "|" ` + fill + ` ` + fill + ` " " "|"}} {{percent . }} {{speed . }}`)
	} else {
		bar.SetTemplate(pb.Full)
	}
	return bar
}
