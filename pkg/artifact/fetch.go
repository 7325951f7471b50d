// Package artifact downloads a run artifact archive into a private scratch
// directory and reads one file out of it.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ErrResultFileMissing means the archive did not contain the requested file.
var ErrResultFileMissing = errors.New("result file not found in artifact")

type Downloader interface {
	Download(ctx context.Context, url string, dest io.Writer) (int64, error)
}

// Fetcher retrieves artifact archives. Each Fetch works in its own
// temporary directory under ScratchDir (the OS temp dir when empty), so
// concurrent invocations never share extraction paths.
type Fetcher struct {
	Downloader Downloader
	ScratchDir string
	Log        logrus.FieldLogger
}

// Fetch downloads the zip archive at url, extracts it and returns the
// content of fileName from the extraction root. The scratch directory is
// removed on every return path.
func (f *Fetcher) Fetch(ctx context.Context, url string, fileName string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp(f.ScratchDir, "workflow-artifact-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			f.Log.Warnf("remove scratch dir %s: %s", tmpDir, err)
		}
	}()

	zipPath := filepath.Join(tmpDir, "artifact.zip")
	if err := f.download(ctx, url, zipPath); err != nil {
		return nil, err
	}

	extractDir := filepath.Join(tmpDir, "artifact")
	if err := os.Mkdir(extractDir, 0755); err != nil {
		return nil, err
	}
	extractStart := time.Now()
	n, err := Unzip(ctx, zipPath, extractDir)
	if err != nil {
		return nil, fmt.Errorf("extract artifact: %w", err)
	}
	f.Log.Debugf("extracted %d files in %s", n, time.Since(extractStart))

	resultPath := filepath.Join(extractDir, fileName)
	info, err := os.Stat(resultPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrResultFileMissing, fileName)
	}
	return os.ReadFile(resultPath)
}

func (f *Fetcher) download(ctx context.Context, url string, dest string) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()

	start := time.Now()
	size, err := f.Downloader.Download(ctx, url, file)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	f.Log.Debugf("downloaded %s artifact archive in %s", humanize.Bytes(uint64(size)), time.Since(start))
	return nil
}
