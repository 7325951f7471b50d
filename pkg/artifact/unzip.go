package artifact

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
)

const maxParallelExtract = 4

// Unzip extracts every file of the archive at zipPath below dest and
// returns the number of files written. Entries escaping dest are rejected.
func Unzip(ctx context.Context, zipPath string, dest string) (int, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	var files []*zip.File
	for _, zf := range r.File {
		path := filepath.Join(dest, zf.Name)
		// Check for ZipSlip (Directory traversal)
		if !strings.HasPrefix(path, root) {
			return 0, fmt.Errorf("illegal file path in archive: %s", zf.Name)
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return 0, err
			}
			continue
		}
		files = append(files, zf)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelExtract)
	for _, zf := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return extractFile(zf, filepath.Join(dest, zf.Name))
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(files), nil
}

func extractFile(zf *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	rc, err := zf.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", zf.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", zf.Name, err)
	}
	return out.Close()
}
