package docker

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Directories never shipped to the daemon: runtime state and snapshots
// would bloat the context and bust the build cache on every run.
var contextSkipDirs = map[string]bool{
	".git":    true,
	"backups": true,
	"ssl":     true,
	"data":    true,
	"logs":    true,
	"models":  true,
	"exports": true,
}

// BuildContext packs dir into an in-memory tar stream suitable for
// ImageBuild. Paths inside the archive are relative to dir.
func BuildContext(dir string) (io.ReadCloser, error) {
	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			relPath, err := filepath.Rel(dir, path)
			if err != nil {
				return err
			}
			if relPath == "." {
				return nil
			}
			if info.IsDir() {
				if contextSkipDirs[relPath] {
					return filepath.SkipDir
				}
				return nil
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			hdr, err := tar.FileInfoHeader(info, "")
			if err != nil {
				return err
			}
			hdr.Name = filepath.ToSlash(relPath)
			if err := tw.WriteHeader(hdr); err != nil {
				return err
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			_, err = io.Copy(tw, f)
			f.Close()
			return err
		})

		if cerr := tw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	return pr, nil
}

// IsContextSkipped reports whether a top-level entry is excluded from the
// build context.
func IsContextSkipped(name string) bool {
	return contextSkipDirs[strings.TrimSuffix(name, "/")]
}
