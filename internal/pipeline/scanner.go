package pipeline

import (
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// imageExtensions lists accepted file extensions.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tiff": true,
	".tif":  true,
}

// imageTypes lists accepted declared MIME types.
var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// Accepted reports whether a file with this name and declared type may enter
// a batch. Either an accepted MIME type or an accepted extension suffices.
func Accepted(name, mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if imageTypes[mt] {
		return true
	}
	return imageExtensions[strings.ToLower(filepath.Ext(name))]
}

// ScanDir walks dir and reads every regular file into a RawFile, skipping
// hidden files and directories. Files are not filtered by type here; Ingest
// rejects what it cannot accept so the caller can report it.
func ScanDir(dir string) ([]RawFile, error) {
	var files []RawFile

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !d.Type().IsRegular() {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		files = append(files, RawFile{
			Name:     name,
			Path:     filepath.ToSlash(rel),
			MIMEType: http.DetectContentType(data),
			Data:     data,
		})
		return nil
	})

	return files, err
}
